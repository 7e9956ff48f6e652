// Package machine owns the arena, the fiber list, and the cooperative
// scheduler that round-robins fibers until each halts or yields.
package machine

import (
	"context"

	"go.uber.org/zap"

	"github.com/pedramcode/fibers/internal/arena"
	"github.com/pedramcode/fibers/internal/fiber"
	"github.com/pedramcode/fibers/internal/opcode"
	"github.com/pedramcode/fibers/internal/splitmix64"
	"github.com/pedramcode/fibers/internal/vmerr"
)

// Config carries construction-time settings for a Machine. A nil Logger
// falls back to a no-op logger, so the core never forces I/O on a
// caller that doesn't want it.
type Config struct {
	ArenaSize uint64
	Logger    *zap.Logger
}

// Machine owns the shared Arena, the live fiber list (in spawn/insertion
// order), and the id generator used by Spawn.
type Machine struct {
	mem    *arena.Arena
	rng    *splitmix64.Source
	fibers []*fiber.Fiber
	log    *zap.Logger
}

// New constructs a Machine with a fresh Arena of cfg.ArenaSize bytes.
func New(cfg Config) *Machine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		mem: arena.New(cfg.ArenaSize),
		rng: splitmix64.NewSource(),
		log: log,
	}
}

// Spawn creates a new Fiber and returns its id. Ids are retried against
// the live fiber set until unique, resolving spec's open question about
// id collisions.
func (m *Machine) Spawn() (uint64, error) {
	f, err := fiber.New(m.mem, m.rng, m.hasFiber)
	if err != nil {
		return 0, err
	}
	id, err := f.ID(m.mem)
	if err != nil {
		return 0, err
	}
	m.fibers = append(m.fibers, f)
	m.log.Info("fiber spawned", zap.Uint64("fiber_id", id))
	return id, nil
}

func (m *Machine) hasFiber(id uint64) bool {
	_, _, ok := m.find(id)
	return ok
}

func (m *Machine) find(id uint64) (*fiber.Fiber, int, bool) {
	for i, f := range m.fibers {
		fid, err := f.ID(m.mem)
		if err != nil {
			continue
		}
		if fid == id {
			return f, i, true
		}
	}
	return nil, -1, false
}

// Kill deallocates and removes the fiber with the given id via
// unordered-swap-remove. Unknown ids are silently ignored.
func (m *Machine) Kill(id uint64) error {
	f, idx, ok := m.find(id)
	if !ok {
		return nil
	}
	if err := f.Kill(m.mem); err != nil {
		return err
	}
	m.fibers[idx] = m.fibers[len(m.fibers)-1]
	m.fibers = m.fibers[:len(m.fibers)-1]
	m.log.Info("fiber killed", zap.Uint64("fiber_id", id))
	return nil
}

// bytecodeWidth maps a WriteBytecodes type tag to its byte width.
func bytecodeWidth(tag uint64) (uint64, error) {
	switch tag {
	case 0:
		return 1, nil
	case 1:
		return 2, nil
	case 2:
		return 4, nil
	case 3:
		return 8, nil
	default:
		return 0, vmerr.Newf(vmerr.InvalidBytecodeDataType, "tag %d", tag)
	}
}

// BytecodePair is one (type_tag, value) entry accepted by WriteBytecodes.
// Tag selects the width the value is truncated to and appended as: 0=u8,
// 1=u16, 2=u32, 3=u64.
type BytecodePair struct {
	Tag   uint64
	Value uint64
}

// WriteBytecodes appends each pair to the target fiber's text Section,
// truncating Value to the width Tag selects. Per the resolved open
// question in SPEC_FULL.md §9.1, bytecode lands in the text Section so
// Execute's fetch loop can actually find it.
func (m *Machine) WriteBytecodes(id uint64, pairs []BytecodePair) error {
	f, _, ok := m.find(id)
	if !ok {
		return vmerr.Newf(vmerr.InvalidFiber, "unknown fiber %d", id)
	}
	for _, p := range pairs {
		width, err := bytecodeWidth(p.Tag)
		if err != nil {
			return err
		}
		switch width {
		case 1:
			err = f.Text.AppendU8(m.mem, uint8(p.Value))
		case 2:
			err = f.Text.AppendU16(m.mem, uint16(p.Value))
		case 4:
			err = f.Text.AppendU32(m.mem, uint32(p.Value))
		case 8:
			err = f.Text.AppendU64(m.mem, p.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteData appends each pair to the target fiber's data Section,
// exercising the literal-data half of the Section API for programs
// that need constants beyond their immediate operands.
func (m *Machine) WriteData(id uint64, pairs []BytecodePair) error {
	f, _, ok := m.find(id)
	if !ok {
		return vmerr.Newf(vmerr.InvalidFiber, "unknown fiber %d", id)
	}
	for _, p := range pairs {
		width, err := bytecodeWidth(p.Tag)
		if err != nil {
			return err
		}
		switch width {
		case 1:
			err = f.Data.AppendU8(m.mem, uint8(p.Value))
		case 2:
			err = f.Data.AppendU16(m.mem, uint16(p.Value))
		case 4:
			err = f.Data.AppendU32(m.mem, uint32(p.Value))
		case 8:
			err = f.Data.AppendU64(m.mem, p.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Arena exposes the Machine's backing Arena for diagnostics (hex dump).
func (m *Machine) Arena() *arena.Arena {
	return m.mem
}

// FiberIDs returns the ids of every currently live fiber, in scheduling
// order.
func (m *Machine) FiberIDs() ([]uint64, error) {
	ids := make([]uint64, 0, len(m.fibers))
	for _, f := range m.fibers {
		id, err := f.ID(m.mem)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Register reads a fiber's register by id, for callers that only have
// the fiber's id (tests, the CLI) rather than a *fiber.Fiber.
func (m *Machine) Register(id uint64, reg opcode.Reg) (uint64, error) {
	f, _, ok := m.find(id)
	if !ok {
		return 0, vmerr.Newf(vmerr.InvalidFiber, "unknown fiber %d", id)
	}
	return f.GetRegister(m.mem, reg)
}

// Execute rounds-robins every live fiber in insertion order until the
// fiber list is empty or ctx is cancelled. Each fiber runs until HLT
// (removed after the round) or YLD (kept for the next round). A
// fiber's error is collected and the fiber is removed, rather than
// propagated up and aborting the whole run — this is the resolved
// "surface the error, keep scheduling" policy from SPEC_FULL.md §7.
func (m *Machine) Execute(ctx context.Context) (map[uint64]error, error) {
	errs := make(map[uint64]error)
	for len(m.fibers) > 0 {
		select {
		case <-ctx.Done():
			return errs, ctx.Err()
		default:
		}

		var toRemove []int
		for i, f := range m.fibers {
			id, idErr := f.ID(m.mem)
			if idErr != nil {
				toRemove = append(toRemove, i)
				continue
			}

			result, err := f.Run(m.mem)
			if err != nil {
				m.log.Warn("fiber error", zap.Uint64("fiber_id", id), zap.Error(err))
				pc, _ := f.GetRegister(m.mem, opcode.PC)
				errs[id] = vmerr.WithFiber(err, id, pc)
				toRemove = append(toRemove, i)
				continue
			}

			switch result {
			case fiber.ResultHalted:
				m.log.Debug("fiber halted", zap.Uint64("fiber_id", id))
				toRemove = append(toRemove, i)
			case fiber.ResultYielded:
				m.log.Debug("fiber yielded", zap.Uint64("fiber_id", id))
			}
		}

		if err := m.removeIndices(toRemove); err != nil {
			return errs, err
		}
	}
	return errs, nil
}

// removeIndices kills and drops every fiber at the given indices
// (computed against the pre-round slice), applying them as a single
// order-preserving pass after the round finishes, matching the "kills
// collected during a round are applied after the round" rule.
func (m *Machine) removeIndices(indices []int) error {
	if len(indices) == 0 {
		return nil
	}
	dead := make(map[*fiber.Fiber]bool, len(indices))
	for _, i := range indices {
		dead[m.fibers[i]] = true
	}
	kept := m.fibers[:0:0]
	for _, f := range m.fibers {
		if dead[f] {
			if err := f.Kill(m.mem); err != nil {
				return err
			}
			continue
		}
		kept = append(kept, f)
	}
	m.fibers = kept
	return nil
}

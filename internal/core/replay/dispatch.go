package replay

import (
	"context"

	"github.com/yndnr/rewind-go/internal/core/differ"
	"github.com/yndnr/rewind-go/internal/core/domain"
)

// dispatch performs the mutations implied by one entry. It reports whether
// an fd-write was routed to the stdio buffers. Errors are *EntryError.
func (p *Player) dispatch(ctx context.Context, pos uint64, e domain.Entry) (bool, error) {
	kind := e.Kind()
	fail := func(err error) (bool, error) { return false, entryError(pos, kind, err) }

	if p.exited {
		switch e.(type) {
		case domain.InitModule, domain.ClearEthereal, domain.Snapshot:
		default:
			return fail(domain.ErrInvalidStateTransition.WithDetailsf("%s after process exit", kind))
		}
	}

	switch e := e.(type) {
	case domain.InitModule:
		if err := p.commit(ctx); err != nil {
			return false, err
		}
		if err := p.live.InitModule(ctx, e.ModuleHash, e.MemorySize); err != nil {
			return fail(liveError("init-module", err))
		}
		p.exited = false
		p.exitCode = 0

	case domain.ClearEthereal:
		p.resetEthereal()
		p.segments++
		p.metrics.SegmentReset()
		p.log.Debug("segment reset", "position", pos, "segment", p.segments)

	case domain.UpdateMemoryRegion:
		if p.diff == nil {
			if err := p.live.WriteMemory(ctx, e.Offset, e.Data); err != nil {
				return fail(liveError("write-memory", err))
			}
			break
		}
		p.differ.Stage(e.Offset, e.Data, differ.Origin{Position: pos, Kind: kind})
		if p.maxStaged > 0 && p.differ.Size() > p.maxStaged {
			if err := p.commit(ctx); err != nil {
				return false, err
			}
		}

	case domain.ProcessExit:
		if err := p.commit(ctx); err != nil {
			return false, err
		}
		if err := p.live.Exit(ctx, e.ExitCode); err != nil {
			return fail(liveError("exit", err))
		}
		p.exited = true
		p.exitCode = e.ExitCode

	case domain.SetThread:
		p.roster.RecordSpawn(e.ID, e.State)
		p.spawnedAt[e.ID] = pos

	case domain.CloseThread:
		if !p.roster.RecordExit(e.ID) {
			p.metrics.UnknownThreadExit()
			p.diagnose(pos, kind, "exit of thread absent from roster", "thread", e.ID)
		}
		delete(p.spawnedAt, e.ID)

	case domain.OpenFileDescriptor:
		if err := p.live.OpenDescriptor(ctx, e.FD, e.Descriptor); err != nil {
			return fail(liveError("open-descriptor", err))
		}
		p.open.Open(e.FD, e.Descriptor.Type)

	case domain.CloseFileDescriptor:
		if err := p.requireOpen(e.FD); err != nil {
			return fail(err)
		}
		if err := p.live.CloseDescriptor(ctx, e.FD); err != nil {
			return fail(liveError("close-descriptor", err))
		}
		p.open.Close(e.FD)

	case domain.RenumberFileDescriptor:
		if err := p.requireOpen(e.From); err != nil {
			return fail(err)
		}
		if err := p.live.RenumberDescriptor(ctx, e.From, e.To); err != nil {
			return fail(liveError("renumber-descriptor", err))
		}
		p.open.Renumber(e.From, e.To)

	case domain.DuplicateFileDescriptor:
		if err := p.requireOpen(e.Original); err != nil {
			return fail(err)
		}
		if err := p.live.DuplicateDescriptor(ctx, e.Original, e.Copied); err != nil {
			return fail(liveError("duplicate-descriptor", err))
		}
		p.open.Duplicate(e.Original, e.Copied)

	case domain.FileDescriptorSeek:
		if err := p.requireOpen(e.FD); err != nil {
			return fail(err)
		}
		if err := p.live.SeekDescriptor(ctx, e.FD, e.Offset, e.Whence); err != nil {
			return fail(liveError("seek-descriptor", err))
		}

	case domain.FileDescriptorWrite:
		if err := p.requireOpen(e.FD); err != nil {
			return fail(err)
		}
		if stream := p.registry.Stream(e.FD); stream != domain.StreamUnknown {
			p.stdio.Append(stream, e.Data)
			return true, nil
		}
		if err := p.live.WriteDescriptor(ctx, e.FD, e.Offset, e.Data); err != nil {
			return fail(liveError("write-descriptor", err))
		}

	case domain.MarkStandardStream:
		if err := p.requireOpen(e.FD); err != nil {
			return fail(err)
		}
		p.registry.Mark(e.FD, e.Stream)

	case domain.UnmarkStandardStream:
		p.registry.Unmark(e.FD)

	case domain.Snapshot:
		if err := p.commit(ctx); err != nil {
			return false, err
		}
		p.snapshots++
		p.log.Debug("snapshot boundary", "position", pos, "trigger", e.Trigger.String())

	default:
		return fail(domain.ErrUnknownEntryKind.WithDetailsf("%T", e))
	}
	return false, nil
}

func (p *Player) requireOpen(fd domain.FD) error {
	if p.open.Has(fd) {
		return nil
	}
	return domain.ErrInvalidStateTransition.WithDetailsf("fd %d is not open in this segment", fd)
}

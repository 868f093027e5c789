// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package recorder

import (
	"fmt"

	"github.com/rdts/logger-core/frame"
)

// Format selects the on-wire/on-screen shape of a playback stream (§6).
type Format int

// Format values.
const (
	FormatASCII Format = iota
	FormatBinary
)

// binary framing markers (§6 "Binary playback framing").
const (
	pageMarkerHi = 0x56
	pageMarkerLo = 0xAA
	frameMarkerHi = 0x55
	frameMarkerLo = 0xAA
)

type playbackStep int

const (
	stepLoadPage playbackStep = iota
	stepEmitFrame
	stepDone
)

// Playback cooperatively streams IMU pages [0, min(currentPage, limit))
// (§4.3 Playback): one page load or one frame emission per Tick call, so
// it never blocks the single-threaded main loop (§5).
type Playback struct {
	eng    *Engine
	format Format

	pageIdx uint32
	endPage uint32

	step playbackStep

	curFrames   []byte
	curFirstID  uint32
	curStartMs  uint32
	curValid    uint16
	curCRC      uint16
	curCRCOK    bool
	frameInPage uint16

	crcWarnings uint32
}

// StartPlayback transitions IDLE -> PLAYBACK and returns a cooperative
// streamer over IMU pages [0, min(currentPage, pageLimit)). pageLimit == 0
// means no limit beyond what's been written.
func (e *Engine) StartPlayback(format Format, pageLimit uint32) (*Playback, error) {
	if e.mode != ModeIdle {
		return nil, fmt.Errorf("%w: start playback requires IDLE, have %v", ErrWrongMode, e.mode)
	}
	end := e.storage.CurrentPage()
	if pageLimit != 0 && pageLimit < end {
		end = pageLimit
	}
	e.mode = ModePlayback
	return &Playback{eng: e, format: format, endPage: end, step: stepLoadPage}, nil
}

// Done reports whether the stream has emitted everything it will.
func (p *Playback) Done() bool { return p.step == stepDone }

// CRCWarnings is the number of pages streamed so far whose footer CRC did
// not validate (§4.3 "CRC mismatch increments a warning counter; playback
// does not abort").
func (p *Playback) CRCWarnings() uint32 { return p.crcWarnings }

// Tick advances the stream by one page-load or one frame-emission,
// writing to sink, and returns true once the stream is exhausted (at which
// point the engine returns to IDLE).
func (p *Playback) Tick(sink Sink) (done bool, err error) {
	switch p.step {
	case stepDone:
		return true, nil

	case stepLoadPage:
		if p.pageIdx >= p.endPage {
			p.eng.mode = ModeIdle
			p.step = stepDone
			return true, nil
		}
		rec, rerr := p.eng.storage.ReadIMUPage(p.pageIdx)
		if rerr != nil {
			return false, rerr
		}
		if !rec.CRCOK {
			p.crcWarnings++
		}
		p.curFrames = rec.FrameBytes
		p.curFirstID = rec.FirstID
		p.curStartMs = rec.PageStartMs
		p.curValid = rec.ValidFrames
		p.curCRC = rec.CRC16
		p.curCRCOK = rec.CRCOK
		p.frameInPage = 0
		p.writePageHeader(sink)
		if p.curValid == 0 {
			p.pageIdx++
			return false, nil
		}
		p.step = stepEmitFrame
		return false, nil

	case stepEmitFrame:
		f := frame.UnmarshalFrame20(p.curFrames[int(p.frameInPage)*frame.Size : (int(p.frameInPage)+1)*frame.Size])
		p.writeFrame(sink, p.curFirstID+uint32(p.frameInPage), f)
		p.frameInPage++
		if p.frameInPage >= p.curValid {
			p.pageIdx++
			p.step = stepLoadPage
		}
		return false, nil
	}
	return false, fmt.Errorf("recorder: playback: invalid internal state")
}

func (p *Playback) writePageHeader(sink Sink) {
	switch p.format {
	case FormatASCII:
		status := "BAD"
		if p.curCRCOK {
			status = "OK"
		}
		sink.WriteLine(fmt.Sprintf("@PAGE %d %d %d %d 0x%04X %s",
			p.pageIdx, p.curValid, p.curFirstID, p.curStartMs, p.curCRC, status))
	case FormatBinary:
		footer := frame.PageFooter{
			Magic: frame.PageMagic, ValidFrames: p.curValid, CRC16: p.curCRC,
			FirstFrameID: p.curFirstID, PageStartMs: p.curStartMs,
		}
		hdr := []byte{pageMarkerHi, pageMarkerLo, frame.FooterSize, 0x00}
		sink.Write(append(hdr, footer.Marshal()...))
	}
}

func (p *Playback) writeFrame(sink Sink, id uint32, f frame.Frame20) {
	switch p.format {
	case FormatASCII:
		sink.WriteLine(fmt.Sprintf("%d %d %d %d %d %d %d %d %d %d %d",
			id, f.Q0, f.Q1, f.Q2, f.Q3, f.Ax, f.Ay, f.Az, f.Mx, f.My, f.Mz))
	case FormatBinary:
		hdr := []byte{frameMarkerHi, frameMarkerLo, frame.Size, 0x00}
		sink.Write(append(hdr, f.Marshal()...))
	}
}

// SyncPlayback cooperatively streams sync pages, the sdump command's
// counterpart to Playback (§6 "@SYNC_PAGE").
type SyncPlayback struct {
	eng     *Engine
	pageIdx uint32
	endPage uint32
	step    playbackStep

	curFrames  []byte
	curFirstID uint32
	curStartMs uint32
	curValid   uint16

	frameInPage uint16
}

// StartSyncPlayback transitions IDLE -> PLAYBACK and streams every written
// sync page in ASCII form (§6).
func (e *Engine) StartSyncPlayback() (*SyncPlayback, error) {
	if e.mode != ModeIdle {
		return nil, fmt.Errorf("%w: start sync playback requires IDLE, have %v", ErrWrongMode, e.mode)
	}
	e.mode = ModePlayback
	return &SyncPlayback{eng: e, endPage: e.storage.SyncCurrentPage(), step: stepLoadPage}, nil
}

// Done reports whether the stream has emitted everything it will.
func (p *SyncPlayback) Done() bool { return p.step == stepDone }

// Tick advances the sync-page stream by one page-load or one
// frame-emission.
func (p *SyncPlayback) Tick(sink Sink) (done bool, err error) {
	switch p.step {
	case stepDone:
		return true, nil
	case stepLoadPage:
		if p.pageIdx >= p.endPage {
			p.eng.mode = ModeIdle
			p.step = stepDone
			return true, nil
		}
		rec, rerr := p.eng.storage.ReadSyncPage(p.pageIdx)
		if rerr != nil {
			return false, rerr
		}
		p.curFrames = rec.FrameBytes
		p.curFirstID = rec.FirstID
		p.curStartMs = rec.PageStartMs
		p.curValid = rec.ValidFrames
		p.frameInPage = 0
		sink.WriteLine(fmt.Sprintf("@SYNC_PAGE %d frames=%d firstID=%d start_ms=%d",
			p.pageIdx, p.curValid, p.curFirstID, p.curStartMs))
		if p.curValid == 0 {
			p.pageIdx++
			return false, nil
		}
		p.step = stepEmitFrame
		return false, nil
	case stepEmitFrame:
		sf := frame.UnmarshalSyncFrame(p.curFrames[int(p.frameInPage)*frame.SyncSize : (int(p.frameInPage)+1)*frame.SyncSize])
		sink.WriteLine(fmt.Sprintf("  %d unix_ms=%d local_ms=%d temp_x100=%d crc=0x%04X",
			p.curFirstID+uint32(p.frameInPage), sf.MasterUnixMs, sf.LocalMs, sf.TempC100, sf.CRC16))
		p.frameInPage++
		if p.frameInPage >= p.curValid {
			p.pageIdx++
			p.step = stepLoadPage
		}
		return false, nil
	}
	return false, fmt.Errorf("recorder: sync playback: invalid internal state")
}

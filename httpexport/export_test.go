// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package httpexport

import (
	"bytes"
	"encoding/binary"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rdts/logger-core/flash/flashtest"
	"github.com/rdts/logger-core/frame"
	"github.com/rdts/logger-core/storage"
)

func TestExportIMUHeaderFraming(t *testing.T) {
	chip := flashtest.New(256 + 1000)
	st, _, _, err := storage.Open(chip, nil)
	require.NoError(t, err)
	frames := make([]frame.Frame20, frame.FramesPerPage)
	for i := range frames {
		frames[i] = frame.Frame20{Q0: 1, Ax: 10, Mx: 40}
	}
	require.NoError(t, st.FlushPage(frames, 0, 1000))

	var buf bytes.Buffer
	require.NoError(t, ExportIMU(&buf, st))

	b := buf.Bytes()
	require.Equal(t, uint32(imuPageMagic), binary.LittleEndian.Uint32(b[0:4]))
	require.Equal(t, uint32(0), binary.LittleEndian.Uint32(b[4:8]))
	require.Equal(t, uint16(frame.FramesPerPage), binary.LittleEndian.Uint16(b[10:12]))
	flags := binary.LittleEndian.Uint16(b[14:16])
	require.NotZero(t, flags&flagFooterValid)
	require.NotZero(t, flags&flagCRCOK)
	require.Len(t, b, 16+frame.FramesPerPage*frame.Size)
}

func TestRouterServesExportEndpoint(t *testing.T) {
	chip := flashtest.New(256 + 1000)
	st, _, _, err := storage.Open(chip, nil)
	require.NoError(t, err)
	require.NoError(t, st.FlushPage([]frame.Frame20{{}}, 0, 0))

	r := Router(st)
	req := httptest.NewRequest("GET", "/export/imu", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.True(t, rec.Body.Len() >= 16+frame.Size)
}

// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package flash

import "fmt"

// Detect tries the external NOR backend first; if its JEDEC id reads back
// as absent (0x00 or 0xFF bytes), it falls back to the emulated backend
// over part, if one is available (§4.1 Detection).
func Detect(bus Bus, norPages uint32, part Partition, emulatedCapacity int64) (Chip, ID, error) {
	nor := NewNOR(bus, norPages)
	id, err := nor.ReadID()
	if err == nil && !idAbsent(id) {
		return nor, id, nil
	}
	if part == nil {
		if err != nil {
			return nil, ID{}, fmt.Errorf("flash: no external NOR and no partition to emulate: %w", err)
		}
		return nil, ID{}, fmt.Errorf("flash: no external NOR (id absent) and no partition to emulate")
	}
	em, eerr := NewEmulated(part, emulatedCapacity)
	if eerr != nil {
		return nil, ID{}, eerr
	}
	eid, _ := em.ReadID()
	return em, eid, nil
}

func idAbsent(id ID) bool {
	allZero := id.Manufacturer == 0x00 && id.Type == 0x00 && id.Capacity == 0x00
	allFF := id.Manufacturer == 0xFF && id.Type == 0xFF && id.Capacity == 0xFF
	return allZero || allFF
}

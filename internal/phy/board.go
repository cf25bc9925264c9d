// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package phy

import (
	"time"

	"github.com/platinasystems/gpio"
	"github.com/platinasystems/log"
)

// Board reset pin. The name matches the device tree gpio-controller entry.
const resetPin = "DDR_RESET_L"

// ResetDRAM drives RESET_n through the board gpio. JESD79-5A wants at
// least 1 us of reset with stable power; we hold it for 1 ms.
func ResetDRAM() {
	pin, found := gpio.Pins[resetPin]
	if !found {
		log.Print("sdram", "notice", "no ", resetPin,
			" pin, skipping board reset")
		return
	}
	pin.SetValue(false)
	time.Sleep(time.Millisecond)
	pin.SetValue(true)
	time.Sleep(time.Millisecond)
}

// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rcd

import (
	"github.com/platinasystems/sdramctl/internal/phy"
)

// Known RCD vendors needing training behavior substitutions.
const (
	ManufacturerMontage = 0x3286
	DeviceTypeMontage   = 0x80
	ManufacturerRambus  = 0x9d86
)

// QuirkCS substitutes the chip-select training variant for the
// identified RCD. Called once after the ID readback; the returned
// channel is used for the rest of training.
func QuirkCS(cs phy.CSChannel, manufacturer uint16) phy.CSChannel {
	if manufacturer == ManufacturerRambus {
		return phy.RambusCS{CSChannel: cs}
	}
	return cs
}

// QuirkCA substitutes the command/address check variant. The Montage
// variant wins over the SDR one, matching the order the substitutions
// are discovered during bring-up.
func QuirkCA(ca phy.CAChannel, manufacturer uint16, deviceType uint8, rate phy.Rate) phy.CAChannel {
	if manufacturer == ManufacturerMontage && deviceType == DeviceTypeMontage {
		return phy.MontageCA{CAChannel: ca}
	}
	if rate != phy.DDR {
		return phy.SDRCA{CAChannel: ca}
	}
	return ca
}

//go:build s390x || ppc64 || mips || mips64

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bo

import "encoding/binary"

// Native returns the byte order a link.WithUART/WithRS485/WithUSBCDC footer
// is computed in on this port. These architectures still turn up on older
// industrial gateways fronting a serial bus.
func Native() binary.ByteOrder { return binary.BigEndian }

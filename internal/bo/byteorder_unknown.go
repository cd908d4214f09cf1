//go:build !amd64 && !arm64 && !386 && !riscv64 && !ppc64le && !mips64le && !mipsle && !loong64 && !wasm && !arm && !s390x && !ppc64 && !mips && !mips64

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bo

import "encoding/binary"

// Native returns binary.NativeEndian on ports this package has no dedicated
// build tag for. Link footers computed on such a port still round-trip
// correctly as long as both ends of the wire run the same binary; only the
// UART/RS485/USB-CDC presets that cross between architectures need one of
// the tagged variants instead.
func Native() binary.ByteOrder { return binary.NativeEndian }

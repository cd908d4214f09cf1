//go:build amd64 || arm64 || 386 || riscv64 || ppc64le || mips64le || mipsle || loong64 || wasm || arm

// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bo

import "encoding/binary"

// Native returns the byte order a link.WithUART/WithRS485/WithUSBCDC footer
// is computed in on this port: the MCU toolchains these presets target are
// little-endian, and avoiding a byte swap on every footer computation
// matters on parts without a barrel shifter.
func Native() binary.ByteOrder { return binary.LittleEndian }

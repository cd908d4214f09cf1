// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bo resolves the "native" byte order the link package's
// transport presets (WithUART, WithRS485, WithUSBCDC) use to compute a
// fragment footer, so two ends of a point-to-point serial link that both
// build for the same MCU target agree on it without negotiating it on the
// wire. WithLoopback uses it too. A Link built without one of these
// presets keeps the default footer byte order, binary.BigEndian.
package bo

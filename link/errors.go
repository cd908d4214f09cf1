// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package link

import "errors"

var (
	// ErrBadPayload reports a transmit fragment whose payload is empty or exceeds MaxFragmentSize.
	ErrBadPayload = errors.New("link: bad payload size")

	// ErrNoDestination reports a transmit fragment with destination address 0.
	ErrNoDestination = errors.New("link: no destination address")

	// ErrNotWritable reports that the transmit queue is full.
	ErrNotWritable = errors.New("link: transmit queue full")

	// ErrInvalidArgument reports a nil or otherwise unusable argument.
	ErrInvalidArgument = errors.New("link: invalid argument")
)

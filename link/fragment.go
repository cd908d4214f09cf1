// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package link

import (
	"time"

	"github.com/google/uuid"

	"github.com/protoserial/stack/bytesbuf"
	"github.com/protoserial/stack/ident"
)

// Address is a small unsigned link address. 0 is reserved and never
// appears on the wire; AddressBroadcast (when configured) is accepted by
// the receive filter in addition to a link's own LocalAddress.
type Address uint8

// AddressInvalid is the reserved "no address" value.
const AddressInvalid Address = 0

// Fragment is one framed unit, belonging to exactly one transfer.
type Fragment struct {
	Source      Address
	Destination Address
	InterfaceID ident.Interface
	CreatedAt   time.Time
	Data        *bytesbuf.Buffer

	// ObjectID identifies this fragment instance for the purpose of
	// correlating a link-layer transmit completion back to the transfer
	// that is waiting on it; it carries no ordering meaning.
	ObjectID uuid.UUID
}

// NewFragment constructs an outgoing fragment with a fresh ObjectID.
func NewFragment(source, destination Address, iid ident.Interface, data *bytesbuf.Buffer) Fragment {
	return Fragment{
		Source:      source,
		Destination: destination,
		InterfaceID: iid,
		CreatedAt:   time.Now(),
		Data:        data,
		ObjectID:    uuid.New(),
	}
}

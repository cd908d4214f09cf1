// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ident defines the interface identifier that scopes addresses and
// transfer IDs to a particular physical or virtual link.
package ident

import "github.com/rs/xid"

// Kind classifies the transport a link runs over.
type Kind uint8

const (
	KindNone Kind = iota
	KindVirtual
	KindLoopback
	KindUART
	KindUSBCDC
)

func (k Kind) String() string {
	switch k {
	case KindVirtual:
		return "virtual"
	case KindLoopback:
		return "loopback"
	case KindUART:
		return "uart"
	case KindUSBCDC:
		return "usb-cdc"
	default:
		return "none"
	}
}

// Interface is a (kind, instance) pair identifying one link for the
// purposes of transfer ID scoping and routing diagnostics.
type Interface struct {
	Kind     Kind
	Instance string
}

// New returns an Interface with an explicit, caller-managed instance tag.
func New(kind Kind, instance string) Interface {
	return Interface{Kind: kind, Instance: instance}
}

// NewAutoInstance returns an Interface whose instance tag is a freshly
// minted globally-unique id, for links whose numbering isn't meaningful
// to the caller (e.g. a USB-CDC adapter enumerated at runtime).
func NewAutoInstance(kind Kind) Interface {
	return Interface{Kind: kind, Instance: xid.New().String()}
}

// Equal reports whether two identifiers refer to the same link.
func (i Interface) Equal(other Interface) bool {
	return i.Kind == other.Kind && i.Instance == other.Instance
}

func (i Interface) String() string {
	return i.Kind.String() + ":" + i.Instance
}

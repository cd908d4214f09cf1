// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transfer

// nextReady scans outgoing transfers in FIFO order and returns the first
// one in a state that wants the link layer's attention this tick (NEW,
// NEXT, or RETRY). Transfers already WAITING or SENT are left alone until
// their own timeout or a link event advances them.
func nextReady(queue []*outgoing) *outgoing {
	for _, o := range queue {
		switch o.State {
		case StateNew, StateNext, StateRetry:
			return o
		}
	}
	return nil
}

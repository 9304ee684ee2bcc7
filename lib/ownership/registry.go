// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ownership

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/holdfast/lib/object"
	"github.com/bureau-foundation/holdfast/lib/protocol"
	"github.com/bureau-foundation/holdfast/lib/ref"
	"github.com/bureau-foundation/holdfast/lib/replica"
)

var (
	// ErrAlreadyHeld is returned when another peer owns the object.
	ErrAlreadyHeld = protocol.Deny(protocol.ReasonAlreadyHeld, "object already held")

	// ErrNotOwner is returned when a peer releases an object it does
	// not own.
	ErrNotOwner = protocol.Deny(protocol.ReasonPermissionDenied, "requester is not the owner")

	// ErrStaleRequester is returned for requests from peers that are
	// no longer connected.
	ErrStaleRequester = protocol.Deny(protocol.ReasonStaleRequester, "requester is not connected")

	// ErrNotRetrievable is returned for objects seated in a socket that
	// disables retrieval.
	ErrNotRetrievable = protocol.Deny(protocol.ReasonPermissionDenied, "object is not retrievable")
)

// Options configure how an object is held.
type Options struct {
	// MultiHolder objects count repeated grabs by their owner and stay
	// owned until each grab is released.
	MultiHolder bool
}

// Registry arbitrates ownership of the objects in a table.
type Registry struct {
	objects *object.Table
	channel *replica.Channel
	logger  *slog.Logger

	options map[ref.ObjectID]Options
	holds   map[ref.ObjectID]int
	grants  []GrantHook
}

// GrantHook runs before an unowned object is handed to requester. An
// error denies the grant.
type GrantHook func(id ref.ObjectID, requester ref.PeerID) error

// NewRegistry returns a registry over objects, committing ownership
// changes through channel.
func NewRegistry(objects *object.Table, channel *replica.Channel, logger *slog.Logger) *Registry {
	return &Registry{
		objects: objects,
		channel: channel,
		logger:  logger,
		options: make(map[ref.ObjectID]Options),
		holds:   make(map[ref.ObjectID]int),
	}
}

// Configure sets an object's options. Objects without options use the
// zero Options.
func (r *Registry) Configure(id ref.ObjectID, options Options) {
	r.options[id] = options
}

// Forget drops per-object bookkeeping for a destroyed object.
func (r *Registry) Forget(id ref.ObjectID) {
	delete(r.options, id)
	delete(r.holds, id)
}

// Owner returns the object's owner, or the zero PeerID if unowned.
func (r *Registry) Owner(id ref.ObjectID) (ref.PeerID, error) {
	target, err := r.objects.Lookup(id)
	if err != nil {
		return ref.PeerID{}, err
	}
	return target.Owner.Get(), nil
}

// BeforeGrant registers a hook that runs before every fresh grant, in
// registration order.
func (r *Registry) BeforeGrant(hook GrantHook) {
	r.grants = append(r.grants, hook)
}

// Holds returns how many holds the owner has on the object.
func (r *Registry) Holds(id ref.ObjectID) int { return r.holds[id] }

// RequestOwnership grants requester ownership of an unowned object.
// granted is true when requester owns the object afterwards, including
// the no-op case of asking again.
func (r *Registry) RequestOwnership(id ref.ObjectID, requester ref.PeerID) (granted bool, err error) {
	target, err := r.objects.Lookup(id)
	if err != nil {
		return false, err
	}
	if !r.channel.Coordinator().Connected(requester) {
		return false, fmt.Errorf("%w: %s", ErrStaleRequester, requester)
	}

	current := target.Owner.Get()
	if current == requester {
		if r.options[id].MultiHolder {
			r.holds[id]++
			r.logger.Debug("additional hold", "object", id, "peer", requester, "holds", r.holds[id])
		}
		return true, nil
	}
	if !current.IsZero() {
		return false, fmt.Errorf("%w: %s owned by %s", ErrAlreadyHeld, id, current)
	}
	if !target.Retrievable.Get() {
		return false, fmt.Errorf("%w: %s", ErrNotRetrievable, id)
	}
	for _, hook := range r.grants {
		if err := hook(id, requester); err != nil {
			return false, err
		}
	}

	if err := r.assign(target, requester); err != nil {
		return false, err
	}
	r.logger.Debug("ownership granted", "object", id, "peer", requester)
	return true, nil
}

// ReleaseOwnership clears requester's ownership. On a multi-holder
// object it releases one hold and clears ownership only when none
// remain.
func (r *Registry) ReleaseOwnership(id ref.ObjectID, requester ref.PeerID) error {
	target, err := r.objects.Lookup(id)
	if err != nil {
		return err
	}
	current := target.Owner.Get()
	if current.IsZero() || current != requester {
		return fmt.Errorf("%w: %s release of %s", ErrNotOwner, requester, id)
	}
	if r.options[id].MultiHolder && r.holds[id] > 1 {
		r.holds[id]--
		r.logger.Debug("hold released", "object", id, "peer", requester, "holds", r.holds[id])
		return nil
	}
	if err := r.clear(target); err != nil {
		return err
	}
	r.logger.Debug("ownership released", "object", id, "peer", requester)
	return nil
}

// ForceRelease clears ownership unconditionally and returns the
// previous owner. Releasing an unowned object changes nothing.
func (r *Registry) ForceRelease(id ref.ObjectID) (ref.PeerID, error) {
	target, err := r.objects.Lookup(id)
	if err != nil {
		return ref.PeerID{}, err
	}
	previous := target.Owner.Get()
	if previous.IsZero() {
		return previous, nil
	}
	if err := r.clear(target); err != nil {
		return previous, err
	}
	r.logger.Debug("ownership force-released", "object", id, "previous_owner", previous)
	return previous, nil
}

// ReleaseAll force-releases every object owned by peer and returns
// their ids. The authority calls it when a peer disconnects.
func (r *Registry) ReleaseAll(peer ref.PeerID) ([]ref.ObjectID, error) {
	owned := r.objects.OwnedBy(peer)
	for _, id := range owned {
		if _, err := r.ForceRelease(id); err != nil {
			return owned, fmt.Errorf("releasing %s held by %s: %w", id, peer, err)
		}
	}
	return owned, nil
}

func (r *Registry) assign(target *object.Object, peer ref.PeerID) error {
	ownerUpdate, err := target.Owner.Write(peer)
	if err != nil {
		return err
	}
	heldUpdate, err := target.Held.Write(true)
	if err != nil {
		return err
	}
	if err := r.channel.Commit(target.Fields, ref.Authority, target.Owner.Get(), ownerUpdate, heldUpdate); err != nil {
		return err
	}
	r.holds[target.ID] = 1
	return nil
}

func (r *Registry) clear(target *object.Object) error {
	ownerUpdate, err := target.Owner.Write(ref.PeerID{})
	if err != nil {
		return err
	}
	heldUpdate, err := target.Held.Write(false)
	if err != nil {
		return err
	}
	if err := r.channel.Commit(target.Fields, ref.Authority, target.Owner.Get(), ownerUpdate, heldUpdate); err != nil {
		return err
	}
	delete(r.holds, target.ID)
	return nil
}

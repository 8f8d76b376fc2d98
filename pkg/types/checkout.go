package types

// CheckoutState is the mutable per-working-copy record of which operation and
// workspace a live filesystem was last synchronized against. The associated
// tree id is tracked alongside it by the checkout state manager.
type CheckoutState struct {
	OperationID OperationID
	WorkspaceID WorkspaceID
}

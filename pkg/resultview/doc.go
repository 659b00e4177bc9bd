// Package resultview hosts the document result view: given the doc_id path
// parameter of the current navigation, it requests the document from a
// lookup collaborator and renders it as indented text.
//
// # Lifecycle
//
// A View holds a single state slot that is either empty ("no data yet") or
// holds the last record that resolved. Render runs a keyed effect: a lookup
// is issued only when the identifier differs from the one seen on the
// previous render, never once per render. An absent identifier issues
// nothing and the view keeps showing the loading indicator.
//
// When the identifier changes the slot is not cleared, so the previous
// record stays visible until the new one arrives.
//
// # Stale responses
//
// Lookups are not cancelled when the identifier changes. By default the last
// response to resolve wins, so a slow lookup for an earlier identifier can
// overwrite the record of a later one. WithDiscardStale(true) tags each
// lookup with its identifier and drops responses whose tag no longer matches
// the current identifier.
//
// # Failures
//
// A lookup that fails or never settles leaves the view on the loading
// indicator. Failures are logged and otherwise dropped.
package resultview

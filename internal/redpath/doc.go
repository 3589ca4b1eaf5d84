// Package redpath compiles slash-separated path expressions over the
// Redfish resource tree into executable subquery handles.
//
// A path expression like "/Chassis[*]/Thermal[*]" is a sequence of
// location steps, each a node name plus a bracketed predicate filtering
// the node set that step selects. Compilation is all-or-nothing per
// subquery: one malformed step invalidates that subquery's handle while
// leaving its siblings untouched.
//
// Handles carry a cursor over their compiled steps. The executor clones
// handles by value along its recursion, so cursor movement in one branch
// of the tree never affects another.
package redpath

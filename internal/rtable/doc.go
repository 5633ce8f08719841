// Package rtable holds route tables: per-direction lists of transfer
// entries, each naming a peer PET and the global indices to move. A
// route's send and recv tables are built independently by every PET from
// the same global layout description.
//
// Build resolves an entry against a local array into an XPacket, the list
// of element spans the schedule reads or writes.
package rtable

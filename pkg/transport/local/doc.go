/*
Package local is the reference in-process Transport: a single Bus shared
by every broker instance in a process dispatches packets by topic
(kind, nodeID), adapted from the teacher's channel-based event broker.
*/
package local

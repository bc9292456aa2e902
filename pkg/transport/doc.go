/*
Package transport pins the Transport contract of spec §6 down as a Go
interface so pkg/transit can drive any substrate — in-process channels
(pkg/transport/local) or gRPC (pkg/transport/grpcbus) — without knowing
which one it's talking to.
*/
package transport

// Package path implements the client commands of the dtrie cli. Every command connects to
// one space of a server (--shard) and translates s-expression arguments into token paths
// and patterns:
//
//	dtrie path insert "(edge a b)" payload
//	dtrie path match "(edge $x $x)"
//	dtrie path prefix --raw "[3] edge a"
//	dtrie path explore --raw "[3] edge"
//	dtrie path upload graph.sexpr
//
// Streaming results are printed while they arrive. Interrupting the command or reaching
// --limit closes the stream, which stops the query on the server.
package path

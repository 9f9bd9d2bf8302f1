// Package toolconn connects sessions to external tool servers over the
// Model Context Protocol.
//
// A Connector opens one Conn per requested server: local servers run
// as a child process speaking stdio, remote servers are reached over
// HTTP trying the streamable transport first and falling back to SSE,
// with configured headers attached to every request. Each Conn lists
// its tools at connect time and exposes CallTool; Release closes the
// connection and is wired as the subsession release action of the
// owning session.
package toolconn

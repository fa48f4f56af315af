// Package mcp exposes the brain service as MCP tools over stdio.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and registers one tool per brain operation: add_memory, search_memories,
// get_team_insights, verify_memory, delete_memory and list_memories. Tool
// errors carry the error class message from pkg/api/v1 and every call is
// recorded by the OTel instruments in metrics.go.
package mcp

package model

// CommandKind enumerates the broker-to-browser commands the Request
// Correlator can await a response for.
type CommandKind string

const (
	CommandExecuteJS    CommandKind = "execute_js"
	CommandGetPageInfo  CommandKind = "get_page_info"
	CommandQueryDOM     CommandKind = "query_dom"
	CommandDOMSnapshot  CommandKind = "get_dom_snapshot"
)

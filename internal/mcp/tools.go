package mcp

import "github.com/mark3labs/mcp-go/mcp"

// normalizeRecordTool defines the normalize_vehicle_record MCP tool.
var normalizeRecordTool = mcp.NewTool("normalize_vehicle_record",
	mcp.WithDescription("Normalize a J1939 vehicle record (mapping, array or flat SPN encoding) into PGNs with their SPNs and bit ranges."),
	mcp.WithString("record",
		mcp.Required(),
		mcp.Description("The vehicle record as a JSON object"),
	),
)

// listVehiclesTool defines the list_vehicles MCP tool.
var listVehiclesTool = mcp.NewTool("list_vehicles",
	mcp.WithDescription("List uploaded vehicle records, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of vehicles to return (default 20)"),
	),
)

// getVehicleTool defines the get_vehicle MCP tool.
var getVehicleTool = mcp.NewTool("get_vehicle",
	mcp.WithDescription("Get an uploaded vehicle record normalized into PGNs and SPNs."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Vehicle ID"),
	),
	mcp.WithString("pgn",
		mcp.Description("Only show this PGN, as hex (e.g. F004 or 0xF004)"),
	),
	mcp.WithNumber("index",
		mcp.Description("Only show the PGN at this 0-based position; use it for PGNs without a hex number"),
	),
)

// lookupPGNTool defines the lookup_pgn MCP tool.
var lookupPGNTool = mcp.NewTool("lookup_pgn",
	mcp.WithDescription("Look up a parameter group in the J1939 reference data by its hex number."),
	mcp.WithString("hex",
		mcp.Required(),
		mcp.Description("PGN in hex, e.g. FEEE"),
	),
)

// searchSPNsTool defines the search_spns MCP tool.
var searchSPNsTool = mcp.NewTool("search_spns",
	mcp.WithDescription("Search J1939 reference SPNs by number, name or description."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("SPN number or free text"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 20)"),
	),
)

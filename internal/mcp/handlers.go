package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/voltline/j1939-console/internal/j1939"
	"github.com/voltline/j1939-console/internal/reference"
)

// handleNormalizeRecord normalizes a record passed inline.
func (s *Server) handleNormalizeRecord(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("record")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: record"), nil
	}

	rec, err := j1939.ParseRecord([]byte(raw))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid record: %v", err)), nil
	}
	res := j1939.Normalize(rec)
	s.metrics.ObserveNormalization(res.Shape.String(), res.SPNCount)

	return mcp.NewToolResultText(formatResult(j1939.DisplayName(rec), res, -1)), nil
}

// handleListVehicles lists stored vehicles.
func (s *Server) handleListVehicles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.vehicles == nil {
		return mcp.NewToolResultError("no vehicle database is configured"), nil
	}
	limit := request.GetInt("limit", 20)
	if limit <= 0 {
		limit = 20
	}

	list, err := s.vehicles.List(ctx, limit, 0)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing vehicles failed: %v", err)), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("No vehicles uploaded yet. Use `j1939c import` or POST /api/vehicles."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d vehicle(s):\n", len(list))
	for _, v := range list {
		fmt.Fprintf(&sb, "- %s  %s (%s, %d PGNs, %d SPNs)\n", v.ID, v.DisplayName, v.Shape, v.PGNCount, v.SPNCount)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleGetVehicle normalizes a stored vehicle.
func (s *Server) handleGetVehicle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.vehicles == nil {
		return mcp.NewToolResultError("no vehicle database is configured"), nil
	}
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	v, rec, err := s.vehicles.Load(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading vehicle failed: %v", err)), nil
	}
	if v == nil {
		return mcp.NewToolResultError(fmt.Sprintf("No vehicle with id %q.", id)), nil
	}
	res := j1939.Normalize(rec)
	s.metrics.ObserveNormalization(res.Shape.String(), res.SPNCount)

	only := -1
	if pgn := request.GetString("pgn", ""); pgn != "" {
		if only = res.Index(pgn); only < 0 {
			return mcp.NewToolResultError(fmt.Sprintf("Vehicle %s has no PGN %s.", v.DisplayName, pgn)), nil
		}
	} else if i := request.GetInt("index", -1); i >= 0 {
		if _, ok := res.At(i); !ok {
			return mcp.NewToolResultError(fmt.Sprintf("Vehicle %s has %d PGN(s); index %d is out of range.", v.DisplayName, res.PGNCount, i)), nil
		}
		only = i
	}
	return mcp.NewToolResultText(formatResult(v.DisplayName, res, only)), nil
}

// handleLookupPGN finds reference PGNs by hex number.
func (s *Server) handleLookupPGN(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.reference == nil {
		return mcp.NewToolResultError("no reference database is configured"), nil
	}
	hex, err := request.RequireString("hex")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: hex"), nil
	}

	hits, err := s.reference.LookupPGN(ctx, hex)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No reference PGN %s. Import a standard with `j1939c import`.", hex)), nil
	}

	var sb strings.Builder
	for i := range hits {
		p, err := s.reference.GetPGN(ctx, hits[i].ID)
		if err != nil || p == nil {
			continue
		}
		code := p.StandardID
		if st, err := s.reference.GetStandard(ctx, p.StandardID); err == nil && st != nil {
			code = st.Code
		}
		fmt.Fprintf(&sb, "\n--- %s PGN %s (%d) ---\n", code, p.PGNHex, p.PGNDec)
		fmt.Fprintf(&sb, "Name: %s\n", p.Name)
		if p.Acronym != "" {
			fmt.Fprintf(&sb, "Acronym: %s\n", p.Acronym)
		}
		if p.TransmissionRate != "" {
			fmt.Fprintf(&sb, "Rate: %s\n", p.TransmissionRate)
		}
		fmt.Fprintf(&sb, "Data length: %d bytes\n", p.DataLength)
		for _, sp := range p.SPNs {
			sb.WriteString(formatSPN(sp))
		}
	}
	return mcp.NewToolResultText(strings.TrimPrefix(sb.String(), "\n")), nil
}

// handleSearchSPNs searches reference SPNs.
func (s *Server) handleSearchSPNs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.reference == nil {
		return mcp.NewToolResultError("no reference database is configured"), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	limit := request.GetInt("limit", 20)

	hits, err := s.reference.SearchSPNs(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(hits) == 0 {
		return mcp.NewToolResultText("No SPNs found."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d SPN(s):\n", len(hits))
	for _, sp := range hits {
		sb.WriteString(formatSPN(sp))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// formatResult renders a normalized record for agent consumption. When
// only is a valid position, just that PGN is listed.
func formatResult(name string, res j1939.Result, only int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Vehicle: %s\n", name)
	fmt.Fprintf(&sb, "Encoding: %s, %d PGN(s), %d SPN(s)\n", res.Shape, res.PGNCount, res.SPNCount)

	for i, p := range res.PGNList {
		if only >= 0 && i != only {
			continue
		}
		fmt.Fprintf(&sb, "\n--- PGN %s (%d) %s ---\n", p.PGNHex, p.PGNDec, p.Name)
		rows := j1939.Rows(p)
		if len(rows) == 0 {
			sb.WriteString(j1939.NoSPNData + "\n")
			continue
		}
		for _, row := range rows {
			fmt.Fprintf(&sb, "- %s  bits %s  value %s %s\n", row.Name, row.BitRange, row.Value, row.Unit)
		}
	}
	return sb.String()
}

func formatSPN(sp reference.SPN) string {
	line := fmt.Sprintf("- SPN %d %s  bits %d-%d  x%g %+g", sp.SPN, sp.Name, sp.StartBit, sp.StartBit+sp.BitWidth, sp.Factor, sp.Offset)
	if sp.Unit != "" {
		line += " " + sp.Unit
	}
	return line + "\n"
}

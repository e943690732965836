// Package format renders assignments for callers
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"social-rideshare/internal/models"
)

// Output names a rendering
type Output string

const (
	OutputJSON      Output = "json"
	OutputPartition Output = "partition"
	OutputText      Output = "text"
)

// ParseOutput maps a user supplied name to an Output. An empty name selects
// OutputJSON.
func ParseOutput(name string) (Output, error) {
	switch o := Output(strings.ToLower(strings.TrimSpace(name))); o {
	case "":
		return OutputJSON, nil
	case OutputJSON, OutputPartition, OutputText:
		return o, nil
	}
	verr := &models.ValidationError{}
	verr.Add("format", "unknown format %q, expected one of json, partition, text", name)
	return "", verr
}

// Group is one shared ride in a response
type Group struct {
	Members []string `json:"members"`
	Cost    float64  `json:"cost"`
	Utility float64  `json:"utility"`
}

// Response is the caller facing rendering of an assignment
type Response struct {
	Groups     []Group  `json:"groups"`
	Unassigned []string `json:"unassigned"`
	TotalCost  float64  `json:"total_cost"`
	Utility    float64  `json:"utility"`
	Capacity   int      `json:"capacity"`
	Tier       string   `json:"tier"`
	Warnings   []string `json:"warnings"`
}

// NewResponse orders members within each group, groups by their first
// member and the unassigned list, all by rider ID
func NewResponse(a *models.Assignment) *Response {
	r := &Response{
		Groups:     make([]Group, 0, len(a.Groups)),
		Unassigned: append([]string{}, a.Unassigned...),
		TotalCost:  a.TotalCost,
		Utility:    a.Utility,
		Capacity:   a.Capacity,
		Tier:       a.Tier,
		Warnings:   append([]string{}, a.Warnings...),
	}
	for _, g := range a.Groups {
		members := append([]string{}, g.Members...)
		models.SortIDs(members)
		r.Groups = append(r.Groups, Group{Members: members, Cost: g.Cost, Utility: g.Utility})
	}
	sort.SliceStable(r.Groups, func(i, j int) bool {
		a, b := r.Groups[i].Members, r.Groups[j].Members
		if len(a) == 0 || len(b) == 0 {
			return len(a) > len(b)
		}
		return models.LessID(a[0], b[0])
	})
	models.SortIDs(r.Unassigned)
	return r
}

// Members returns the rider IDs of every group
func (r *Response) Members() [][]string {
	out := make([][]string, len(r.Groups))
	for i, g := range r.Groups {
		out[i] = g.Members
	}
	return out
}

// Partition renders the groups as nested lists. Integer IDs become JSON
// numbers so a graph keyed by numbers round-trips unchanged. Unassigned
// riders ride with no one and are left out.
func Partition(r *Response) [][]any {
	out := make([][]any, len(r.Groups))
	for i, g := range r.Groups {
		out[i] = make([]any, len(g.Members))
		for j, id := range g.Members {
			out[i][j] = partitionID(id)
		}
	}
	return out
}

func partitionID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil && strconv.FormatInt(n, 10) == id {
		return n
	}
	return id
}

// Text renders a human readable summary
func Text(w io.Writer, r *Response) error {
	var b strings.Builder
	for i, g := range r.Groups {
		fmt.Fprintf(&b, "ride %d (%d riders, cost %.2f): %s\n", i+1, len(g.Members), g.Cost, strings.Join(g.Members, ", "))
	}
	if len(r.Groups) == 0 {
		b.WriteString("no rides\n")
	}
	if len(r.Unassigned) > 0 {
		fmt.Fprintf(&b, "unassigned: %s\n", strings.Join(r.Unassigned, ", "))
	}
	fmt.Fprintf(&b, "total cost %.2f, utility %.2f, capacity %d, tier %s\n", r.TotalCost, r.Utility, r.Capacity, r.Tier)
	for _, warning := range r.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", warning)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Write renders r to w in the given output
func Write(w io.Writer, output Output, r *Response) error {
	switch output {
	case OutputText:
		return Text(w, r)
	case OutputPartition:
		return encode(w, Partition(r))
	case OutputJSON, "":
		return encode(w, r)
	}
	return fmt.Errorf("unknown output %q", output)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

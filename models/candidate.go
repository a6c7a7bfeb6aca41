package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Candidate is one ballot option. Code is what voters encrypt.
type Candidate struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
}

// CandidateSet is the fixed list of options for one election.
type CandidateSet struct {
	ordered []Candidate
	byCode  map[string]Candidate
}

// NewCandidateSet validates and indexes candidates. Codes are kept exactly as
// given (apart from surrounding spaces) and must be unique.
func NewCandidateSet(candidates []Candidate) (*CandidateSet, error) {
	if len(candidates) == 0 {
		return nil, errors.New("candidate list is empty")
	}

	set := &CandidateSet{byCode: make(map[string]Candidate, len(candidates))}
	for _, c := range candidates {
		c.Code = strings.TrimSpace(c.Code)
		if c.Code == "" {
			return nil, errors.New("candidate code is required")
		}
		if _, dup := set.byCode[c.Code]; dup {
			return nil, fmt.Errorf("duplicate candidate code %q", c.Code)
		}
		if c.DisplayName == "" {
			c.DisplayName = c.Code
		}
		set.ordered = append(set.ordered, c)
		set.byCode[c.Code] = c
	}
	return set, nil
}

// ParseCandidates reads "A=Name,B=Name".
func ParseCandidates(list string) (*CandidateSet, error) {
	var candidates []Candidate
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		code, name, _ := strings.Cut(item, "=")
		candidates = append(candidates, Candidate{Code: code, DisplayName: strings.TrimSpace(name)})
	}
	return NewCandidateSet(candidates)
}

// DefaultCandidates is the three-way ballot used when none is configured.
func DefaultCandidates() *CandidateSet {
	set, _ := NewCandidateSet([]Candidate{
		{Code: "A", DisplayName: "Candidate A"},
		{Code: "B", DisplayName: "Candidate B"},
		{Code: "C", DisplayName: "Candidate C"},
	})
	return set
}

// Lookup finds a candidate by exact code.
func (s *CandidateSet) Lookup(code string) (Candidate, bool) {
	c, ok := s.byCode[code]
	return c, ok
}

// All returns the candidates in configured order.
func (s *CandidateSet) All() []Candidate {
	return append([]Candidate(nil), s.ordered...)
}

// DisplayName maps a code to its name, or returns the code itself.
func (s *CandidateSet) DisplayName(code string) string {
	if c, ok := s.byCode[code]; ok {
		return c.DisplayName
	}
	return code
}

// TallyResult is the decrypted frequency count of the vote ledger. Counts is
// keyed by decoded value; values that are not candidate codes keep their
// literal text.
type TallyResult struct {
	Counts        map[string]int `json:"counts"`
	Total         int            `json:"total"`
	ChainValid    bool           `json:"chain_valid"`
	Undecryptable int            `json:"undecryptable,omitempty"`
}

// ResultLine is one row of a presented tally.
type ResultLine struct {
	Code        string  `json:"code"`
	DisplayName string  `json:"display_name"`
	Votes       int     `json:"votes"`
	Percent     float64 `json:"percent"`
	Known       bool    `json:"known"`
}

// Lines orders the tally for display: configured candidates first (including
// those with zero votes), then unknown values alphabetically.
func (r *TallyResult) Lines(set *CandidateSet) []ResultLine {
	lines := make([]ResultLine, 0, len(r.Counts)+len(set.ordered))
	for _, c := range set.ordered {
		lines = append(lines, r.line(c.Code, c.DisplayName, true))
	}

	var unknown []string
	for code := range r.Counts {
		if _, ok := set.byCode[code]; !ok {
			unknown = append(unknown, code)
		}
	}
	sort.Strings(unknown)
	for _, code := range unknown {
		lines = append(lines, r.line(code, code, false))
	}
	return lines
}

func (r *TallyResult) line(code, name string, known bool) ResultLine {
	l := ResultLine{Code: code, DisplayName: name, Votes: r.Counts[code], Known: known}
	if r.Total > 0 {
		l.Percent = float64(l.Votes) * 100 / float64(r.Total)
	}
	return l
}

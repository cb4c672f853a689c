// Package testcase turns uploaded judge files into named input/output pairs
// and checks those pairs for completeness before submission.
package testcase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/upload"
)

// RejectionKind classifies why a group of files did not become a testcase.
type RejectionKind string

const (
	RejectCollision  RejectionKind = "collision"
	RejectDuplicate  RejectionKind = "duplicate"
	RejectUnreadable RejectionKind = "unreadable"
)

// Rejection describes one basename (or one file) that was left out.
type Rejection struct {
	Name    string        `json:"name"`
	Kind    RejectionKind `json:"kind"`
	Message string        `json:"message"`
}

// Result is the outcome of one extraction batch.
type Result struct {
	Items    []model.TestcaseItem `json:"items"`
	Rejected []Rejection          `json:"rejected"`
	// Ignored lists files whose extension is not a testcase extension.
	Ignored []string `json:"ignored"`
}

// Collisions returns only the name-collision rejections.
func (r Result) Collisions() []Rejection {
	var out []Rejection
	for _, rej := range r.Rejected {
		if rej.Kind == RejectCollision {
			out = append(out, rej)
		}
	}
	return out
}

type side int

const (
	sideNone side = iota
	sideInput
	sideOutput
)

func classify(name string) side {
	switch upload.Ext(name) {
	case model.ExtInput:
		return sideInput
	case model.ExtAnswer, model.ExtOutput:
		return sideOutput
	default:
		return sideNone
	}
}

type group struct {
	name   string
	input  *upload.File
	output *upload.File
}

// Extractor groups uploaded files into testcase pairs.
type Extractor struct {
	maxFileBytes int64
	log          zerolog.Logger
}

// NewExtractor creates an Extractor. Files above maxFileBytes are rejected as
// unreadable; 0 disables the cap.
func NewExtractor(maxFileBytes int64, log zerolog.Logger) *Extractor {
	return &Extractor{
		maxFileBytes: maxFileBytes,
		log:          log.With().Str("component", "testcase_extractor").Logger(),
	}
}

// Extract pairs files by basename. Groups whose basename is already in
// existingNames are rejected one by one without aborting the batch. Every
// accepted group becomes a new secret testcase, even when only one side was
// supplied.
//
// Groups are read one at a time in first-appearance order.
func (e *Extractor) Extract(ctx context.Context, files []upload.File, existingNames map[string]struct{}) (Result, error) {
	var res Result
	groups, order := e.group(files, &res)

	taken := make(map[string]struct{}, len(existingNames)+len(order))
	for name := range existingNames {
		taken[name] = struct{}{}
	}

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		g := groups[name]

		if _, exists := taken[name]; exists {
			res.Rejected = append(res.Rejected, Rejection{
				Name:    name,
				Kind:    RejectCollision,
				Message: fmt.Sprintf("a testcase named %q already exists", name),
			})
			continue
		}

		item, err := e.read(g)
		if err != nil {
			e.log.Warn().Err(err).Str("testcase", name).Msg("Testcase group unreadable")
			res.Rejected = append(res.Rejected, Rejection{
				Name:    name,
				Kind:    RejectUnreadable,
				Message: err.Error(),
			})
			continue
		}

		taken[name] = struct{}{}
		res.Items = append(res.Items, item)
	}

	e.log.Debug().
		Int("files", len(files)).
		Int("accepted", len(res.Items)).
		Int("rejected", len(res.Rejected)).
		Int("ignored", len(res.Ignored)).
		Msg("Testcase files extracted")
	return res, nil
}

func (e *Extractor) group(files []upload.File, res *Result) (map[string]*group, []string) {
	groups := make(map[string]*group)
	var order []string

	for i := range files {
		f := files[i]
		s := classify(f.Name)
		if s == sideNone {
			res.Ignored = append(res.Ignored, f.Name)
			continue
		}

		name := f.Base()
		g, ok := groups[name]
		if !ok {
			g = &group{name: name}
			groups[name] = g
			order = append(order, name)
		}

		slot := &g.input
		if s == sideOutput {
			slot = &g.output
		}
		if *slot != nil {
			res.Rejected = append(res.Rejected, Rejection{
				Name:    f.Name,
				Kind:    RejectDuplicate,
				Message: fmt.Sprintf("%s was already supplied by %s", f.Name, (*slot).Name),
			})
			continue
		}
		*slot = &f
	}
	return groups, order
}

func (e *Extractor) read(g *group) (model.TestcaseItem, error) {
	item := model.TestcaseItem{
		Name:  g.name,
		Type:  model.TestcaseSecret,
		IsNew: true,
	}

	if g.input != nil {
		data, err := g.input.ReadAll(e.maxFileBytes)
		if err != nil {
			return model.TestcaseItem{}, err
		}
		item.Input = Decode(data)
		item.SourceFiles = append(item.SourceFiles, g.input.Name)
	}
	if g.output != nil {
		data, err := g.output.ReadAll(e.maxFileBytes)
		if err != nil {
			return model.TestcaseItem{}, err
		}
		item.Output = Decode(data)
		item.SourceFiles = append(item.SourceFiles, g.output.Name)
	}
	if g.input == nil && g.output == nil {
		return model.TestcaseItem{}, errors.New("no input or output file")
	}
	return item, nil
}

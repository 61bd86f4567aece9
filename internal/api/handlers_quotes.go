package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/erykwalder/quoth/internal/capture"
	"github.com/erykwalder/quoth/internal/embed"
	"github.com/erykwalder/quoth/internal/metadata"
	"github.com/erykwalder/quoth/internal/parser"
	"github.com/erykwalder/quoth/internal/quote"
	"github.com/erykwalder/quoth/internal/subpath"
	"github.com/erykwalder/quoth/internal/textpos"
	"github.com/erykwalder/quoth/internal/vault"
)

type selectionRequest struct {
	File string            `json:"file"`
	From *textpos.Position `json:"from"`
	To   *textpos.Position `json:"to"`
}

type captureRequest struct {
	selectionRequest
	// FromPath is the note the block will be written into; links are
	// shortened relative to it.
	FromPath string `json:"from_path"`
}

type captureResponse struct {
	Block   string   `json:"block"`
	File    string   `json:"file"`
	Subpath string   `json:"subpath"`
	Ranges  []string `json:"ranges"`
}

// handleCapture builds a quoth block for a selection. Without from/to the
// last selection posted to /api/selection is used.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	var sel capture.Selection
	switch {
	case req.From != nil && req.To != nil && req.File != "":
		sel = capture.NewSelection(req.File, *req.From, *req.To)
	case req.From == nil && req.To == nil:
		last, ok := s.selection.Last()
		if !ok {
			jsonError(w, "no selection recorded", http.StatusBadRequest)
			return
		}
		sel = last
	default:
		jsonError(w, "file, from and to must be given together", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	raw, err := s.vault.Read(ctx, sel.File)
	if err != nil {
		s.vaultError(w, err)
		return
	}
	doc, err := parser.Load(sel.File, []byte(raw))
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	var meta *metadata.Metadata
	if doc.Markdown {
		meta = metadata.Build(doc.Text)
	}
	link, err := s.vault.LinkText(ctx, sel.File, req.FromPath)
	if err != nil {
		s.vaultError(w, err)
		return
	}

	e, err := capture.Build(s.settings, link, doc.Text, meta, sel)
	if err != nil {
		status := captureStatus(err)
		if status == http.StatusInternalServerError {
			s.log.Error("capture failed", "file", sel.File, "error", err)
		}
		jsonError(w, err.Error(), status)
		return
	}

	ranges := make([]string, len(e.Ranges))
	for i, rg := range e.Ranges {
		ranges[i] = rg.String()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(captureResponse{
		Block:   embed.Serialize(e),
		File:    e.File,
		Subpath: e.Subpath,
		Ranges:  ranges,
	})
}

// captureStatus maps a capture.Build error to a response status. Bad
// positions and scopes missing from the document are the caller's input.
func captureStatus(err error) int {
	switch {
	case errors.Is(err, textpos.ErrOutOfBounds),
		errors.Is(err, subpath.ErrHeadingNotFound),
		errors.Is(err, subpath.ErrBlockNotFound),
		errors.Is(err, subpath.ErrListItemNotFound):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

type resolveRequest struct {
	FromPath string `json:"from_path"`
	Block    string `json:"block"`
}

type resolveResponse struct {
	*quote.Quote
	Rendered string `json:"rendered"`
}

// handleResolve assembles the text a quoth block refers to. Failures the
// author can fix are reported as 422 with a readable message.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	e, err := embed.Parse(req.Block)
	if err != nil {
		jsonError(w, quote.UserMessage(err), http.StatusUnprocessableEntity)
		return
	}
	q, err := quote.Assemble(r.Context(), s.vault, req.FromPath, e, quote.Options{Normalize: s.cfg.NormalizeQuotes})
	if err != nil {
		s.log.Debug("resolve failed", "from_path", req.FromPath, "file", e.File, "error", err)
		jsonError(w, quote.UserMessage(err), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resolveResponse{Quote: q, Rendered: quote.Render(q, e.Display, e.Show)})
}

func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.File == "" || req.From == nil || req.To == nil {
		jsonError(w, "file, from and to are required", http.StatusBadRequest)
		return
	}
	s.selection.Update(capture.NewSelection(req.File, *req.From, *req.To))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	sel, ok := s.selection.Last()
	if !ok {
		jsonError(w, "no selection recorded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sel)
}

func (s *Server) vaultError(w http.ResponseWriter, err error) {
	if errors.Is(err, vault.ErrFileNotFound) {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	s.log.Error("vault error", "error", err)
	jsonError(w, "vault unavailable", http.StatusInternalServerError)
}

package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sheetvault/sheetvault/internal/core"
	"github.com/sheetvault/sheetvault/internal/logging"
)

func (s *Server) datasetID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "datasetID"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid dataset id: %w", err)
	}
	return id, nil
}

// handleImport accepts a multipart upload and starts an asynchronous
// import. The response is the task to poll, not the dataset: large files
// take a while and the transaction runs on the writer worker.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, r, fmt.Errorf("parse upload: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("no file provided: %w", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	if name == "" {
		name = "dataset"
	}

	var task core.Task
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx", ".xlsm", ".xls":
		var sheets []string
		if raw := r.FormValue("sheets"); raw != "" {
			for _, sheet := range strings.Split(raw, ",") {
				if sheet = strings.TrimSpace(sheet); sheet != "" {
					sheets = append(sheets, sheet)
				}
			}
		}
		task, err = s.service.StartImportXLSX(r.Context(), name, header.Filename, data, sheets)
	default:
		task, err = s.service.StartImportCSV(r.Context(), name, header.Filename, data)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("import started",
		"task_id", task.ID, "kind", task.Kind, "file", header.Filename, "bytes", len(data))
	respondJSON(w, http.StatusAccepted, task)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("invalid task id: %w", err))
		return
	}

	info, ok := s.service.TaskStatus(id)
	if !ok {
		respondJSON(w, http.StatusNotFound, ErrorResponse{Error: "task not found or expired"})
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	includeDeleted := r.URL.Query().Get("deleted") == "1"

	c, err := s.service.DispatchRead(r.Context(), "list", func(ctx context.Context) (any, error) {
		return s.service.List(ctx, includeDeleted)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	datasets, _ := c.Value.([]core.Dataset)
	if datasets == nil {
		datasets = []core.Dataset{}
	}
	respondJSON(w, http.StatusOK, datasets)
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	id, err := s.datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	c, err := s.service.DispatchRead(r.Context(), "get", func(ctx context.Context) (any, error) {
		return s.service.Get(ctx, id)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c.Value)
}

func (s *Server) handleQueryPage(w http.ResponseWriter, r *http.Request) {
	id, err := s.datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	pageIndex, err := strconv.ParseInt(chi.URLParam(r, "pageIndex"), 10, 64)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("invalid page index: %w", err))
		return
	}

	pageSize := int64(s.cfg.Query.PageSize)
	if raw := r.URL.Query().Get("size"); raw != "" {
		pageSize, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || pageSize < 1 {
			s.respondError(w, r, fmt.Errorf("invalid page size %q", raw))
			return
		}
		if pageSize > int64(s.cfg.Query.MaxPageSize) {
			pageSize = int64(s.cfg.Query.MaxPageSize)
		}
	}

	c, err := s.service.DispatchRead(r.Context(), "query_page", func(ctx context.Context) (any, error) {
		return s.service.QueryPage(ctx, id, pageIndex, pageSize)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c.Value)
}

func (s *Server) handleRenameDataset(w http.ResponseWriter, r *http.Request) {
	id, err := s.datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, r, fmt.Errorf("decode body: %w", err))
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		s.respondError(w, r, fmt.Errorf("name must not be empty"))
		return
	}

	_, err = s.service.DispatchWrite(r.Context(), "rename", func(ctx context.Context) (any, error) {
		return nil, s.service.Rename(ctx, id, body.Name)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteDataset removes a dataset. With ?soft=1 it only stamps
// deleted_at; otherwise the dataset and all of its rows go in one
// transaction. Both flavors are idempotent.
func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id, err := s.datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	soft := r.URL.Query().Get("soft") == "1"

	_, err = s.service.DispatchWrite(r.Context(), "delete", func(ctx context.Context) (any, error) {
		if soft {
			return nil, s.service.SoftDelete(ctx, id)
		}
		return nil, s.service.Delete(ctx, id)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetColumnVisibility(w http.ResponseWriter, r *http.Request) {
	id, err := s.datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	c, err := s.service.DispatchRead(r.Context(), "column_visibility", func(ctx context.Context) (any, error) {
		return s.service.ColumnVisibility(ctx, id)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	visibility, _ := c.Value.(map[int64]bool)
	out := make(map[string]bool, len(visibility))
	for colIdx, visible := range visibility {
		out[strconv.FormatInt(colIdx, 10)] = visible
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleSaveColumnVisibility(w http.ResponseWriter, r *http.Request) {
	id, err := s.datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var body map[string]bool
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, r, fmt.Errorf("decode body: %w", err))
		return
	}

	visibility := make(map[int64]bool, len(body))
	for key, visible := range body {
		colIdx, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("invalid column index %q: %w", key, err))
			return
		}
		visibility[colIdx] = visible
	}

	_, err = s.service.DispatchWrite(r.Context(), "save_column_visibility", func(ctx context.Context) (any, error) {
		return nil, s.service.SaveColumnVisibility(ctx, id, visibility)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetFlags(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.DispatchRead(r.Context(), "flags", func(ctx context.Context) (any, error) {
		return s.service.Flags(ctx)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	flags, _ := c.Value.(map[int64]bool)
	out := make(map[string]bool, len(flags))
	for id, flagged := range flags {
		out[strconv.FormatInt(id, 10)] = flagged
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetFlag(w http.ResponseWriter, r *http.Request) {
	id, err := s.datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var body struct {
		Flagged bool `json:"flagged"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, r, fmt.Errorf("decode body: %w", err))
		return
	}

	_, err = s.service.DispatchWrite(r.Context(), "set_flag", func(ctx context.Context) (any, error) {
		return nil, s.service.SetFlag(ctx, id, body.Flagged)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAdvanceGeneration bumps the generation token. UI clients call this
// when they switch datasets so completions from the previous interest can
// be recognized as stale.
func (s *Server) handleAdvanceGeneration(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]uint64{
		"generation": s.service.AdvanceGeneration(),
	})
}

// handleEvents streams committed state changes as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, fmt.Errorf("streaming not supported"))
		return
	}

	events, cancel := s.service.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		}
	}
}

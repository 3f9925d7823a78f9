package http_server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danthegoodman1/joinplanner/optimizer"
	"github.com/danthegoodman1/joinplanner/partitioner"
	"github.com/danthegoodman1/joinplanner/planstore"
	"github.com/danthegoodman1/joinplanner/program"
	"github.com/danthegoodman1/joinplanner/utils"
	"github.com/rs/zerolog"
)

type (
	CompileResponse struct {
		ID   string                    `json:"id"`
		Plan optimizer.PlanDescription `json:"plan"`
	}

	PartitionerInfo struct {
		Name        string `json:"name"`
		OperandType string `json:"operand_type"`
	}
)

const defaultListLimit = 50

func (s *HTTPServer) CompileHandler(c *CustomContext) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second*30)
	defer cancel()
	logger := zerolog.Ctx(ctx)

	var prog program.Program
	if err := ValidateRequest(c, &prog); err != nil {
		return c.UserError(http.StatusBadRequest, err)
	}

	plan, err := prog.Build(ctx)
	if program.IsProgramError(err) {
		return c.UserError(http.StatusBadRequest, err)
	}
	if err != nil {
		return c.InternalError(err, "error building plan")
	}

	compiler := *s.Compiler
	if prog.Parallelism > 0 {
		compiler.Parallelism = prog.Parallelism
	}
	op, err := compiler.Compile(ctx, plan)
	if errors.Is(err, optimizer.ErrEmptyPlan) || errors.Is(err, optimizer.ErrNoSinks) {
		return c.UserError(http.StatusBadRequest, err)
	}
	if err != nil {
		return c.InternalError(err, "error compiling plan")
	}

	rec := planstore.NewRecord(op)
	if err = s.Store.Put(ctx, rec); err != nil {
		return c.InternalError(err, "error storing plan")
	}

	logger.Debug().Str("planID", rec.ID).Str("program", prog.Name).Msg("compiled program")
	return c.JSON(http.StatusCreated, CompileResponse{
		ID:   rec.ID,
		Plan: rec.Description,
	})
}

func (s *HTTPServer) GetPlanHandler(c *CustomContext) error {
	rec, err := s.Store.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, planstore.ErrNotFound) {
		return c.UserError(http.StatusNotFound, err)
	}
	if err != nil {
		return c.InternalError(err, "error getting plan")
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *HTTPServer) ListPlansHandler(c *CustomContext) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l <= 0 {
			return c.String(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = l
	}
	recs, err := s.Store.List(c.Request().Context(), limit)
	if err != nil {
		return c.InternalError(err, "error listing plans")
	}
	return c.JSON(http.StatusOK, utils.ArrayOrEmpty(recs))
}

func (s *HTTPServer) ListPartitionersHandler(c *CustomContext) error {
	parts := partitioner.List()
	infos := make([]PartitionerInfo, len(parts))
	for i, p := range parts {
		infos[i] = PartitionerInfo{Name: p.Name, OperandType: p.OperandType.String()}
	}
	return c.JSON(http.StatusOK, infos)
}

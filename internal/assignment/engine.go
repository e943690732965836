// Package assignment partitions scored riders into shared rides.
//
// The engine maximizes the summed utility of riders sharing a group
// (equivalently it minimizes the summed cost minus ShareReward), after
// first minimizing the number of riders left unassigned. Only pairwise
// compatible riders share a group and no group exceeds the capacity.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"social-rideshare/internal/models"
)

// Engine selects a tier per request and builds the assignment. It holds no
// per-request state and is safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine creates an engine. A nil logger disables logging.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.Named("assignment"),
	}
}

func (e *Engine) Assign(ctx context.Context, req *Request) (*models.Assignment, error) {
	start := time.Now()

	n := 0
	if req.Scores != nil {
		n = req.Scores.Len()
	}
	if len(req.IDs) != n {
		return nil, fmt.Errorf("request names %d riders but scores cover %d", len(req.IDs), n)
	}

	algorithm := req.Algorithm
	if algorithm == "" {
		algorithm = AlgorithmAuto
	}

	e.logger.Debug("starting calculation",
		zap.Int("riders", n),
		zap.Int("capacity", req.Capacity),
		zap.String("algorithm", string(algorithm)))

	if req.Capacity < 1 {
		return nil, &models.CapacityError{
			Field:    "number",
			Capacity: req.Capacity,
			Reason:   fmt.Sprintf("number must be at least 1, got %d", req.Capacity),
		}
	}
	minSize := e.cfg.minGroupSize()
	if minSize > req.Capacity {
		return nil, &models.CapacityError{
			Field:    "number",
			Capacity: req.Capacity,
			Reason:   fmt.Sprintf("number %d is below the minimum group size %d", req.Capacity, minSize),
		}
	}

	if n == 0 {
		if e.cfg.RequireComplete {
			return nil, &models.CapacityError{
				Field:    "graph",
				Capacity: req.Capacity,
				Reason:   "no riders to form groups from",
			}
		}
		e.logger.Debug("no riders to assign")
		return &models.Assignment{
			Capacity:   req.Capacity,
			Groups:     []models.Group{},
			Unassigned: []string{},
			Tier:       string(resolveEmpty(algorithm)),
			Warnings:   []string{},
		}, nil
	}

	warnings := []string{}
	var p *partition
	var tier Algorithm
	var err error

	switch algorithm {
	case AlgorithmAuto:
		if n <= e.cfg.ExactMaxNodes {
			p, tier, err = e.exactOrGreedy(ctx, req.Scores, req.Capacity, &warnings)
		} else {
			p, tier, err = e.greedy(ctx, req.Scores, req.Capacity)
		}
	case AlgorithmExact:
		p, tier, err = e.exactOrGreedy(ctx, req.Scores, req.Capacity, &warnings)
	case AlgorithmGreedy:
		p, tier, err = e.greedy(ctx, req.Scores, req.Capacity)
	case AlgorithmMatchAndMerge:
		solver := &matchAndMergeSolver{scores: req.Scores, capacity: req.Capacity}
		p, err = solver.solve(ctx)
		tier = AlgorithmMatchAndMerge
		if err == nil {
			enforceMinGroupSize(req.Scores, p, req.Capacity, minSize)
		}
	default:
		return nil, errUnknownAlgorithm(algorithm)
	}
	if err != nil {
		return nil, err
	}

	result := e.buildAssignment(req, p, tier, warnings)

	if e.cfg.RequireComplete && len(result.Unassigned) > 0 {
		return nil, &models.InfeasibleError{
			Field:      "graph",
			Reason:     fmt.Sprintf("%d riders cannot be placed in a group of %d to %d compatible riders", len(result.Unassigned), minSize, req.Capacity),
			Capacity:   req.Capacity,
			Unassigned: result.Unassigned,
		}
	}

	e.logger.Info("assignment complete",
		zap.String("tier", result.Tier),
		zap.Int("riders", n),
		zap.Int("groups", len(result.Groups)),
		zap.Int("unassigned", len(result.Unassigned)),
		zap.Float64("total_cost", result.TotalCost),
		zap.Float64("utility", result.Utility),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

func (e *Engine) exactOrGreedy(ctx context.Context, scores PairScores, capacity int, warnings *[]string) (*partition, Algorithm, error) {
	n := scores.Len()
	if n > exactHardLimit {
		msg := fmt.Sprintf("exact search supports at most %d riders, got %d; fell back to greedy", exactHardLimit, n)
		e.logger.Warn(msg)
		*warnings = append(*warnings, msg)
		return e.greedy(ctx, scores, capacity)
	}

	solver := &exactSolver{
		scores:   scores,
		capacity: capacity,
		minSize:  e.cfg.minGroupSize(),
		maxSteps: e.cfg.ExactMaxSteps,
	}
	if e.cfg.ExactTimeBudget > 0 {
		solver.deadline = time.Now().Add(e.cfg.ExactTimeBudget)
	}

	p, err := solver.solve(ctx)
	var budget *errBudgetExceeded
	switch {
	case err == nil:
		e.logger.Debug("exact search finished", zap.Int64("steps", solver.steps))
		return p, AlgorithmExact, nil
	case errors.As(err, &budget):
		msg := budget.Error() + ", fell back to greedy"
		e.logger.Warn(msg, zap.Int("riders", n))
		*warnings = append(*warnings, msg)
		return e.greedy(ctx, scores, capacity)
	default:
		return nil, "", err
	}
}

func (e *Engine) greedy(ctx context.Context, scores PairScores, capacity int) (*partition, Algorithm, error) {
	solver := &greedySolver{
		scores:   scores,
		capacity: capacity,
		minSize:  e.cfg.minGroupSize(),
		rounds:   e.cfg.LocalSearchRounds,
	}
	p, err := solver.solve(ctx)
	if err != nil {
		return nil, "", err
	}
	enforceMinGroupSize(scores, p, capacity, solver.minSize)
	return p, AlgorithmGreedy, nil
}

func (e *Engine) buildAssignment(req *Request, p *partition, tier Algorithm, warnings []string) *models.Assignment {
	sortGroups(p.groups)
	sort.Ints(p.unassigned)

	result := &models.Assignment{
		Capacity:   req.Capacity,
		Groups:     make([]models.Group, 0, len(p.groups)),
		Unassigned: make([]string, 0, len(p.unassigned)),
		Tier:       string(tier),
		Warnings:   warnings,
	}
	for _, g := range p.groups {
		members := make([]string, len(g))
		for i, r := range g {
			members[i] = req.IDs[r]
		}
		group := models.Group{
			Members: members,
			Cost:    groupCost(req.Scores, g),
			Utility: groupUtility(req.Scores, g),
		}
		result.Groups = append(result.Groups, group)
		result.TotalCost += group.Cost
		result.Utility += group.Utility
	}
	for _, r := range p.unassigned {
		result.Unassigned = append(result.Unassigned, req.IDs[r])
	}
	return result
}

func resolveEmpty(a Algorithm) Algorithm {
	if a == AlgorithmAuto {
		return AlgorithmExact
	}
	return a
}

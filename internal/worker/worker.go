// Package worker provides a NATS worker that processes unit-selection jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/unitselect-service/internal/core"
	"github.com/book-expert/unitselect-service/internal/viterbi"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 30 * time.Second

var (
	// ErrInventoryKeyEmpty indicates that the request names no inventory.
	ErrInventoryKeyEmpty = errors.New("inventory key cannot be empty")
	// ErrTargetPhoneEmpty indicates a target without a phone label.
	ErrTargetPhoneEmpty = errors.New("target phone cannot be empty")
	// ErrWorkersNegative indicates a negative worker count.
	ErrWorkersNegative = errors.New("workers must be non-negative")
)

// NatsWorker listens for selection requests on a NATS subject and answers them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	inventories    core.ObjectStore
	results        core.ObjectStore
	selector       core.Selector
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. Inventories are read
// from inventories and results are written to results.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	inventories core.ObjectStore,
	results core.ObjectStore,
	selector core.Selector,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		inventories:    inventories,
		results:        results,
		selector:       selector,
		log:            log,
	}, nil
}

// Run starts the worker and blocks until ctx is done.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	request, err := w.parseRequest(msg)
	if err != nil {
		w.log.Error("Failed to parse selection request: %v", err)
		w.respond(msg, &core.SelectionReply{Error: err.Error()})

		return
	}

	reply := &core.SelectionReply{Header: request.Header}

	resultKey, result, err := w.processSelectionJob(ctx, request)
	if err != nil {
		w.log.Error("Failed to process selection job for workflow %s: %v", request.Header.WorkflowID, err)
		reply.Error = err.Error()
		reply.NoPath = errors.Is(err, viterbi.ErrNoPath)
	} else {
		reply.ResultKey = resultKey
		reply.Score = result.Score
		reply.Units = result.Units
	}

	w.respond(msg, reply)
}

// processSelectionJob downloads the inventory, runs the search and uploads the result.
func (w *NatsWorker) processSelectionJob(
	ctx context.Context,
	request *core.SelectionRequest,
) (string, *core.SelectionResult, error) {
	cfg := w.jobConfig(request)

	validationErr := validateJob(request, cfg)
	if validationErr != nil {
		return "", nil, validationErr
	}

	inventoryData, err := w.inventories.Download(ctx, request.InventoryKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to download inventory '%s': %w", request.InventoryKey, err)
	}

	result, err := w.selector.Select(ctx, inventoryData, request.Targets, cfg)
	if err != nil {
		return "", nil, fmt.Errorf("failed to select units: %w", err)
	}

	resultData, err := json.Marshal(result)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal selection result: %w", err)
	}

	resultKey := uuid.NewString() + ".json"

	err = w.results.Upload(ctx, resultKey, resultData)
	if err != nil {
		return "", nil, fmt.Errorf("failed to upload selection result for key '%s': %w", resultKey, err)
	}

	return resultKey, result, nil
}

// jobConfig applies the request's overrides to the selector defaults.
func (w *NatsWorker) jobConfig(request *core.SelectionRequest) core.SelectionConfig {
	cfg := w.selector.GetConfig()

	if request.BeamWidth != nil {
		cfg.BeamWidth = *request.BeamWidth
	}

	if request.ContinuityWeight != nil {
		cfg.ContinuityWeight = *request.ContinuityWeight
	}

	return cfg
}

// validateJob rejects bad requests before any download or search work.
func validateJob(request *core.SelectionRequest, cfg core.SelectionConfig) error {
	if request.InventoryKey == "" {
		return ErrInventoryKeyEmpty
	}

	for i, target := range request.Targets {
		if target.Phone == "" {
			return fmt.Errorf("%w: target %d", ErrTargetPhoneEmpty, i)
		}
	}

	if cfg.Workers < 0 {
		return fmt.Errorf("%w: got %d", ErrWorkersNegative, cfg.Workers)
	}

	return viterbi.Config{
		BeamWidth:        cfg.BeamWidth,
		ContinuityWeight: cfg.ContinuityWeight,
		Workers:          cfg.Workers,
	}.Validate()
}

func (w *NatsWorker) respond(msg *nats.Msg, reply *core.SelectionReply) {
	replyData, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("Failed to marshal selection reply: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish selection reply for workflow %s: %v", reply.Header.WorkflowID, err)
	}
}

func (w *NatsWorker) parseRequest(msg *nats.Msg) (*core.SelectionRequest, error) {
	var request core.SelectionRequest

	err := json.Unmarshal(msg.Data, &request)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}

	return &request, nil
}

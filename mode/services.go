package mode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/pipeline"
	"github.com/khaledhikmat/ws-go/service/config"
	"github.com/khaledhikmat/ws-go/service/data"
	"github.com/khaledhikmat/ws-go/service/inference"
	"github.com/khaledhikmat/ws-go/service/lgr"
	"github.com/khaledhikmat/ws-go/service/metrics"
	"github.com/khaledhikmat/ws-go/service/pubsub"
	"github.com/khaledhikmat/ws-go/service/sorter"
	"github.com/khaledhikmat/ws-go/service/store"
	"github.com/khaledhikmat/ws-go/service/webhook"
	"github.com/khaledhikmat/ws-go/vision"
)

// NewServices builds the services both modes share. Only the classifier is mandatory:
// an unreachable store, Redis or MQTT broker is logged and the run goes on without it.
// The returned closer releases everything that was opened.
func NewServices(canxCtx context.Context, cfgSvc config.IService) (pipeline.ServicesFactory, func(), error) {
	svcs := pipeline.ServicesFactory{
		CfgSvc:    cfgSvc,
		DataSvc:   data.NewFilesDB(cfgSvc),
		Notifiers: map[string]pipeline.Notifier{},
		Metrics:   metrics.New(),
	}

	var closers []func() error

	// Inference service
	if cfgSvc.GetFramerType() == config.RandomFramerType {
		lgr.Logger.Info("random framer selected, using the fake classifier")
		svcs.InferenceSvc = inference.NewFake(model.DefaultCategorySet())
	} else {
		classifier, err := vision.NewClassifier(cfgSvc.GetClassifierParameters())
		if err != nil {
			return pipeline.ServicesFactory{}, func() {}, fmt.Errorf("failed to load classifier: %w", err)
		}
		svcs.InferenceSvc = classifier
	}
	closers = append(closers, svcs.InferenceSvc.Close)

	// Store service
	if params := cfgSvc.GetStoreParameters(); params.Driver != config.NoStoreDriver {
		storeSvc, err := store.New(params)
		if err != nil {
			lgr.Logger.Warn("remote stat store unavailable, counting locally only",
				slog.String("driver", params.Driver),
				lgr.Err(err),
			)
		} else {
			svcs.StoreSvc = storeSvc
			closers = append(closers, storeSvc.Close)
		}
	}

	// Pubsub service
	svcs.PubsubSvc = pubsub.NewInMemory()
	if url := cfgSvc.GetRedisURL(); url != "" {
		redisSvc, err := pubsub.NewRedis(url)
		if err != nil {
			lgr.Logger.Warn("redis unavailable, stats updates stay in process", lgr.Err(err))
		} else {
			svcs.PubsubSvc = redisSvc
		}
	}
	closers = append(closers, svcs.PubsubSvc.Close)

	// Notifiers
	if params := cfgSvc.GetMQTTParameters(); params.Broker != "" {
		sorterSvc, err := sorter.NewMQTT(canxCtx, params)
		if err != nil {
			lgr.Logger.Warn("sorter broker unavailable", slog.String("broker", params.Broker), lgr.Err(err))
		} else {
			svcs.Notifiers["sorter"] = sorterSvc
			closers = append(closers, func() error {
				stats := sorterSvc.Stats()
				lgr.Logger.Info("sorter summary",
					slog.Bool("connected", stats.Connected),
					slog.Any("published", stats.Published),
					slog.Uint64("errors", stats.Errors),
				)
				return sorterSvc.Close()
			})
		}
	}

	if cfgSvc.GetWebhookURL() != "" {
		svcs.Notifiers["webhook"] = webhook.NewHTTP(cfgSvc)
	}

	closeAll := func() {
		var errs []error
		// Reverse order of creation.
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		if err := errors.Join(errs...); err != nil {
			lgr.Logger.Warn("error releasing services", lgr.Err(err))
		}
	}

	return svcs, closeAll, nil
}

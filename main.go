package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/rcnn"
	"github.com/nvr-ai/go-detect/profiler"
)

// Dump is the on-disk form of one image's worth of detector head
// outputs, as written by the capture tooling.
type Dump struct {
	// ImageShape is (height, width).
	ImageShape [2]int `json:"image_shape"`
	// NumClasses is the number of foreground classes.
	NumClasses int `json:"num_classes"`
	// Proposals are (N, 5) rows: batch tag plus box corners.
	Proposals [][]float32 `json:"proposals"`
	// BBoxDeltas are (N, 4*num_classes) rows.
	BBoxDeltas [][]float32 `json:"bbox_deltas"`
	// ClassProbs are (N, num_classes+1) rows, background first.
	ClassProbs [][]float32 `json:"class_probs"`
	// Config overrides the pipeline defaults when present.
	Config *rcnn.Config `json:"config,omitempty"`
}

func initLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

func main() {
	var (
		inputPath   string
		classFamily string
		showTimings bool
	)
	flag.StringVar(&inputPath, "input", "", "Path to a JSON dump of proposals, deltas and probabilities")
	flag.StringVar(&classFamily, "classes", "coco", "Class set for display names (coco, voc)")
	flag.BoolVar(&showTimings, "timings", false, "Report per-stage timings")
	flag.Parse()

	log := initLogger()

	if inputPath == "" {
		log.Fatal("missing required -input flag")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		log.WithError(err).Fatal("failed to read input dump")
	}

	var dump Dump
	if err := json.Unmarshal(data, &dump); err != nil {
		log.WithError(err).Fatal("failed to parse input dump")
	}

	config := rcnn.DefaultConfig()
	if dump.Config != nil {
		config = *dump.Config
	}

	proposer, err := rcnn.NewProposer(dump.NumClasses, config)
	if err != nil {
		log.WithError(err).Fatal("failed to create proposer")
	}

	var timings *profiler.StageProfiler
	if showTimings {
		timings = profiler.NewStageProfiler()
		proposer.SetProfiler(timings)
	}

	height, width := dump.ImageShape[0], dump.ImageShape[1]
	output, err := proposer.Detect(dump.Proposals, dump.BBoxDeltas, dump.ClassProbs, height, width)
	if err != nil {
		log.WithError(err).Fatal("detection failed")
	}

	classSet, haveNames := models.LookupSet(models.ModelFamily(classFamily))
	if !haveNames && classFamily != "" {
		log.Warnf("unknown class family %q, reporting numeric labels", classFamily)
	}

	log.WithFields(logrus.Fields{
		"proposals":  len(dump.Proposals),
		"detections": len(output.Objects),
	}).Info("pipeline complete")

	for i, box := range output.Objects {
		label := output.Labels[i]
		name := "-"
		if haveNames {
			name = classSet.ForegroundName(label)
		}
		log.WithFields(logrus.Fields{
			"label": label,
			"class": name,
			"prob":  output.Probs[i],
			"box":   box,
		}).Info("detection")
	}

	if showTimings {
		for _, stage := range timings.Stages() {
			log.WithFields(logrus.Fields{
				"stage": stage.Name(),
				"total": stage.Total(),
			}).Info("stage timing")
		}
	}
}

package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/company-profiler/internal/model"
	"github.com/sells-group/company-profiler/internal/parse"
)

// classify answers the categorical questions for a description. A sentinel
// description skips the model and yields "Uncertain" everywhere. Model errors
// are returned; unparseable replies degrade to empty fields.
func (p *Pipeline) classify(ctx context.Context, log *zap.Logger, desc string) (model.Classification, error) {
	if model.IsPageError(desc) {
		return model.UncertainClassification(), nil
	}

	if p.schema == model.SchemaReduced {
		reply, err := p.invoke(ctx, "check_ai", p.models.Classification, p.prompts.CheckAI(desc))
		if err != nil {
			return model.Classification{}, err
		}
		return model.Classification{IsAIStartup: parse.ParseYesNo(reply)}, nil
	}

	reply, err := p.invoke(ctx, "classify", p.models.Classification, p.prompts.Classify(desc))
	if err != nil {
		return model.Classification{}, err
	}
	fields, err := parse.ExtractFields(reply, model.ClassificationKeys)
	if err != nil {
		log.Warn("pipeline: unparseable classification", zap.String("stage", "classify"), zap.Error(err))
		return model.Classification{}, nil
	}
	return model.ClassificationFromFields(fields), nil
}

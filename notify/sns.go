package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/yashrajoria/catalog-seeder/logger"
	"github.com/yashrajoria/catalog-seeder/models"
	pkgaws "github.com/yashrajoria/catalog-seeder/pkg/aws"
)

// SNSNotifier publishes run events to an SNS topic.
type SNSNotifier struct {
	publisher pkgaws.SNSPublisher
	topicArn  string
	logger    *zap.Logger
}

func NewSNSNotifier(publisher pkgaws.SNSPublisher, topicArn string, l *zap.Logger) *SNSNotifier {
	return &SNSNotifier{publisher: publisher, topicArn: topicArn, logger: logger.OrNop(l)}
}

func (n *SNSNotifier) ObserveRun(ctx context.Context, rec *models.RunRecord) error {
	body, err := json.Marshal(NewRunEvent(rec))
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	attrs := map[string]string{
		"event": EventRunFinished,
		"state": rec.State,
	}
	if err := n.publisher.Publish(ctx, n.topicArn, body, attrs); err != nil {
		return err
	}
	n.logger.Debug("run event published to sns", zap.String("topic", n.topicArn), zap.String("state", rec.State))
	return nil
}

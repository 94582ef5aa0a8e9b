package signal

import "go.uber.org/fx"

var Module = fx.Module("signal.service",
	fx.Provide(NewService, NewAuthenticator),
)

// ConsumerModule runs the Kafka ingestion consumer when brokers are configured.
var ConsumerModule = fx.Module("signal.consumer",
	fx.Provide(NewConsumer),
	fx.Invoke(registerConsumer),
)

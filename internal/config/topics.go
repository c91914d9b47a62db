package config

const (
	// TopicEventTask carries routed inbound events when EXECUTOR=nsq.
	TopicEventTask = "events.task"

	// ChannelEventTask is the consumer channel on TopicEventTask.
	ChannelEventTask = "reelsync-worker"
)

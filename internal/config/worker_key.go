package config

type WorkerKeyStruct struct {
	PersistViolationsQueue    string
	PersistNotificationsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistViolationsQueue:    "persist_violations_queue",
	PersistNotificationsQueue: "persist_notifications_queue",
}

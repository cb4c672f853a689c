package config

type WorkerKeyStruct struct {
	BulkCreateQueue string
}

var WorkerKey = &WorkerKeyStruct{
	BulkCreateQueue: "bulk_create_queue",
}

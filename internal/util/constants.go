package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

const (
	MimeCSV = "text/csv"
)

// 默认分页参数
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

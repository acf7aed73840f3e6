package di

import "errors"

// 容器对外暴露的错误类型，调用方使用 errors.Is 判断。
var (
	ErrServiceNotFound   = errors.New("di: service not found")
	ErrCircularReference = errors.New("di: circular reference")
	ErrReadOnly          = errors.New("di: read only service")
	ErrAbstractService   = errors.New("di: abstract service")
	ErrPrivateService    = errors.New("di: private service")
	ErrInvalidService    = errors.New("di: invalid service")
	ErrParameterNotFound = errors.New("di: parameter not found")
	ErrInvalidParameter  = errors.New("di: invalid parameter")
	ErrNotCacheable      = errors.New("di: not cacheable")
	ErrCacheDataNotFound = errors.New("di: cache data not found")
	ErrFileNotFound      = errors.New("di: file not found")
	ErrInvalidFile       = errors.New("di: invalid file")
)

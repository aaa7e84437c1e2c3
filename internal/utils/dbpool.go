package utils

import (
	"time"

	"gorm.io/gorm"
)

// OptimizeDBPool 优化数据库连接池
// 写入方是少量扫描worker（每任务数次状态更新+结果落库），
// 读取方是API的历史查询, 连接需求远小于默认池上限
func OptimizeDBPool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	// 空闲连接覆盖worker并发+API查询, 避免频繁创建销毁
	sqlDB.SetMaxIdleConns(10)

	// 上限留出批量入库（库明细/提取明细逐行写）的余量
	sqlDB.SetMaxOpenConns(50)

	// 连接最大生命周期, 防止长连接被中间件或数据库侧静默断开
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 扫描负载有明显的空闲期, 闲置连接及时回收
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	return nil
}

package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSqlite = "sqlite"
	DriverMysql  = "mysql"
)

const DefaultDSN = "gpu_usage.db"

var ErrUsageNotFound = errors.New("没有找到对应的usage记录")

type Config struct {
	Driver  string // sqlite或mysql
	DSN     string // sqlite为数据库文件路径，mysql为user:pass@tcp(host:port)/db格式
	Verbose bool   // 是否输出SQL日志
}

func (c *Config) Complete() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" {
		c.Driver = DriverSqlite
	}
	if c.Driver != DriverSqlite && c.Driver != DriverMysql {
		return fmt.Errorf("不支持的数据库驱动%s，可选值：sqlite, mysql", c.Driver)
	}
	if c.DSN == "" {
		if c.Driver == DriverMysql {
			return fmt.Errorf("使用mysql时必须指定DSN")
		}
		c.DSN = DefaultDSN
	}
	return nil
}

type UpdateDao interface {
	// 查询(pid, gpuId)对应的记录，不存在时返回ErrUsageNotFound
	QueryUsage(pid, gpuId int) (*core.UsageRecord, error)
	CreateUsage(r *core.UsageRecord) error
	UpdateUsage(r *core.UsageRecord) error
	SaveDetail(d *core.DetailSample) error
}

type QueryDao interface {
	// 按读取顺序返回所有usage记录
	QueryAllUsage() ([]*core.UsageRecord, error)
	QueryUsageByUser(userName string) ([]*core.UsageRecord, error)
	NewDetailSource() (DetailSource, error)
}

type Dao interface {
	DB() *gorm.DB
	UpdateDao
	QueryDao
	// 在一个事务中执行fn。fn返回错误时整体回滚
	Transaction(fn func(tx UpdateDao) error) error
	Close() error
}

type daoImpl struct {
	db     *gorm.DB
	logger *log.Entry
}

var _ Dao = &daoImpl{}

func NewDao(config *Config) (Dao, error) {
	if err := config.Complete(); err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch config.Driver {
	case DriverMysql:
		dialector = mysql.Open(config.DSN)
	default:
		dialector = sqlite.Open(config.DSN)
	}

	entry := log.WithField("component", "store")
	level := logger.Silent
	if config.Verbose {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(entry, logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      level,
		}),
	})
	if err != nil {
		return nil, errors.Wrap(err, "连接数据库错误")
	}

	// 创建表格等
	err = db.AutoMigrate(&UsageDO{}, &DetailDO{})
	if err != nil {
		return nil, errors.Wrap(err, "创建表格时出现异常")
	}

	entry.Debugf("已打开%s数据库%s", config.Driver, config.DSN)

	return &daoImpl{
		db:     db,
		logger: entry,
	}, nil
}

func (d *daoImpl) QueryUsage(pid, gpuId int) (*core.UsageRecord, error) {
	do := &UsageDO{}
	err := d.db.Where("pid = ? AND gpu_id = ?", pid, gpuId).Take(do).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUsageNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("查询usage出错，pid为%d，gpu为%d", pid, gpuId))
	}
	return do.record(), nil
}

func (d *daoImpl) CreateUsage(r *core.UsageRecord) error {
	err := d.db.Create(usageDOFromRecord(r)).Error
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("插入usage出错，pid为%d，gpu为%d", r.Pid, r.GpuId))
	}
	return nil
}

// UpdateUsage 只更新统计字段，user_name、process_name与start_time保持首次写入的值
func (d *daoImpl) UpdateUsage(r *core.UsageRecord) error {
	// 使用map以便写入零值
	err := d.db.Model(&UsageDO{}).
		Where("pid = ? AND gpu_id = ?", r.Pid, r.GpuId).
		Updates(map[string]interface{}{
			"end_time":   r.EndTime,
			"min_memory": r.MinMemory,
			"max_memory": r.MaxMemory,
			"sum_memory": r.SumMemory,
			"mem_count":  r.MemCount,
		}).Error
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("更新usage出错，pid为%d，gpu为%d", r.Pid, r.GpuId))
	}
	return nil
}

func (d *daoImpl) SaveDetail(s *core.DetailSample) error {
	err := d.db.Create(&DetailDO{
		Pid:       s.Pid,
		GpuId:     s.GpuId,
		UserName:  s.UserName,
		TimeStamp: s.TimeStamp,
		Memory:    s.Memory,
	}).Error
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("插入details出错，pid为%d，gpu为%d", s.Pid, s.GpuId))
	}
	return nil
}

func (d *daoImpl) QueryAllUsage() ([]*core.UsageRecord, error) {
	doArray := []*UsageDO{}
	err := d.db.Find(&doArray).Error
	if err != nil {
		return nil, errors.Wrap(err, "获取所有usage记录出错")
	}
	return toRecords(doArray), nil
}

func (d *daoImpl) QueryUsageByUser(userName string) ([]*core.UsageRecord, error) {
	doArray := []*UsageDO{}
	err := d.db.Where("user_name = ?", userName).Find(&doArray).Error
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("获取用户%s的usage记录出错", userName))
	}
	return toRecords(doArray), nil
}

func (d *daoImpl) NewDetailSource() (DetailSource, error) {
	rows, err := d.db.Model(&DetailDO{}).Rows()
	if err != nil {
		return nil, errors.Wrap(err, "读取details出错")
	}
	return &rowsDetailSource{db: d.db, rows: rows}, nil
}

func (d *daoImpl) Transaction(fn func(tx UpdateDao) error) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		return fn(&daoImpl{db: tx, logger: d.logger})
	})
}

func (d *daoImpl) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return errors.Wrap(err, "获取数据库连接出错")
	}
	d.logger.Debug("关闭数据库连接")
	return sqlDB.Close()
}

func (d *daoImpl) DB() *gorm.DB {
	return d.db
}

func toRecords(doArray []*UsageDO) []*core.UsageRecord {
	result := make([]*core.UsageRecord, len(doArray))
	for i, do := range doArray {
		result[i] = do.record()
	}
	return result
}

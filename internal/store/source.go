package store

import (
	"database/sql"
	"io"

	"github.com/packagewjx/gpu-usage-recorder/pkg/core"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type DetailSource interface {
	// 读取一条明细记录。若读取完毕，则error设置为io.EOF。error为其他时表示读取出错
	Load() (*core.DetailSample, error)
	Close() error
}

// rowsDetailSource 逐行扫描details表，不会一次性把整张表读入内存
type rowsDetailSource struct {
	db   *gorm.DB
	rows *sql.Rows
}

func (r *rowsDetailSource) Load() (*core.DetailSample, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, errors.Wrap(err, "读取details时出错")
		}
		return nil, io.EOF
	}

	do := &DetailDO{}
	if err := r.db.ScanRows(r.rows, do); err != nil {
		return nil, errors.Wrap(err, "解析details记录出错")
	}
	return do.sample(), nil
}

func (r *rowsDetailSource) Close() error {
	return r.rows.Close()
}

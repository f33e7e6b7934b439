package models

import (
	"database/sql/driver"
	"encoding/json"
)

// JSONList 类型定义，用于存储有序的结构化条目（如执行轨迹步骤）
type JSONList []map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSONList) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner 接口
func (j *JSONList) Scan(value interface{}) error {
	if value == nil {
		*j = JSONList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, j)
}

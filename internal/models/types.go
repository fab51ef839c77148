package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON 通用 JSON 对象字段
type JSON map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	raw, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	return scanJSONColumn(value, j)
}

// UintArray 无符号整数数组，JSON 存储
type UintArray []uint

// Value 实现 driver.Valuer 接口
func (a UintArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (a *UintArray) Scan(value interface{}) error {
	if value == nil {
		*a = UintArray{}
		return nil
	}
	return scanJSONColumn(value, a)
}

// Contains 判断是否包含指定 ID
func (a UintArray) Contains(id uint) bool {
	for _, item := range a {
		if item == id {
			return true
		}
	}
	return false
}

// PersonalizedValue 行项目个性化内容
type PersonalizedValue struct {
	TypeID uint   `json:"id"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

// PersonalizedValues 个性化内容列表（保持下单顺序）
type PersonalizedValues []PersonalizedValue

// Value 实现 driver.Valuer 接口
func (p PersonalizedValues) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (p *PersonalizedValues) Scan(value interface{}) error {
	if value == nil {
		*p = PersonalizedValues{}
		return nil
	}
	return scanJSONColumn(value, p)
}

// ReturnItem 退货申请中的行项目
type ReturnItem struct {
	LineItemID uint `json:"line_item_id"`
	Quantity   int  `json:"quantity"`
}

// ReturnItems 退货行项目列表
type ReturnItems []ReturnItem

// Value 实现 driver.Valuer 接口
func (r ReturnItems) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (r *ReturnItems) Scan(value interface{}) error {
	if value == nil {
		*r = ReturnItems{}
		return nil
	}
	return scanJSONColumn(value, r)
}

// sqlite 驱动返回 string，postgres 返回 []byte
func scanJSONColumn(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
}

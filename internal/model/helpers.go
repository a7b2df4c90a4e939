package model

// StrPtr 将 string 转换为 *string
func StrPtr(s string) *string {
	return &s
}

// StrVal 安全地从 *string 获取值，如果为 nil 返回空串
func StrVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// IntPtr 将 int 转换为 *int
func IntPtr(i int) *int {
	return &i
}

// All lists every model managed by migrations, in dependency order
func All() []interface{} {
	return []interface{}{
		&Node{},
		&Telemetry{},
		&CurrentState{},
		&StateHistory{},
		&Firmware{},
		&OTAUpdate{},
		&OTANodeStatus{},
	}
}

package config

// CredentialStore 基于配置文件的凭据存取
// 每次读写都走文件，配置文件是唯一事实来源。
type CredentialStore struct {
	manager *Manager
}

// NewCredentialStore 创建凭据存取器
func NewCredentialStore(manager *Manager) *CredentialStore {
	return &CredentialStore{manager: manager}
}

// Find 按 SSID 与接口查找已保存的密码
func (s *CredentialStore) Find(ssid, iface string) (string, bool) {
	cfg, err := s.manager.Load()
	if err != nil {
		return "", false
	}
	cred := cfg.FindNetwork(ssid, iface)
	if cred == nil {
		return "", false
	}
	return cred.Password, true
}

// Save 保存凭据，同一 (SSID, 接口) 覆盖旧记录
func (s *CredentialStore) Save(ssid, password, iface string) error {
	cfg, err := s.manager.Load()
	if err != nil {
		return err
	}
	cfg.AddNetwork(NetworkCredential{
		SSID:      ssid,
		Password:  password,
		Interface: iface,
	})
	return s.manager.Save(cfg)
}

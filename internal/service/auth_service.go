package service

import (
	"errors"

	"pizzeria-rag-go/internal/config"
	"pizzeria-rag-go/pkg/hash"
	"pizzeria-rag-go/pkg/token"
)

// ErrInvalidCredentials 用户名或密码错误。
var ErrInvalidCredentials = errors.New("invalid credentials")

// OperatorRole 运维人员角色，可上传文档与触发重建索引。
const OperatorRole = "OPERATOR"

// AuthService 运维人员登录，账号来自配置 auth.operators（bcrypt 哈希）。
type AuthService interface {
	Login(username, password string) (string, error)
}

type authService struct {
	operators  map[string]string
	jwtManager *token.JWTManager
}

// NewAuthService 创建一个新的 AuthService。
func NewAuthService(cfg config.AuthConfig, jwtManager *token.JWTManager) AuthService {
	ops := make(map[string]string, len(cfg.Operators))
	for _, op := range cfg.Operators {
		ops[op.Username] = op.PasswordHash
	}
	return &authService{operators: ops, jwtManager: jwtManager}
}

// Login 校验成功后签发 access token。
func (s *authService) Login(username, password string) (string, error) {
	hashed, ok := s.operators[username]
	if !ok || !hash.CheckPasswordHash(password, hashed) {
		return "", ErrInvalidCredentials
	}
	return s.jwtManager.GenerateToken(username, OperatorRole)
}

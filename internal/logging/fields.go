package logging

import "go.uber.org/zap"

// Standard field constructors keep key names consistent across components.

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func UserID(v string) zap.Field    { return zap.String("user_id", v) }
func Email(v string) zap.Field     { return zap.String("email", v) }
func OrderID(v string) zap.Field   { return zap.String("order_id", v) }
func PaymentRef(v string) zap.Field {
	return zap.String("payment_ref", v)
}
func ProductID(v string) zap.Field { return zap.String("product_id", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

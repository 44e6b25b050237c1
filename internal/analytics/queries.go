package analytics

// Query is one named, read-only warehouse query
type Query struct {
	Name string
	SQL  string
}

// Queries is the fixed battery, executed and exported in this order
var Queries = []Query{
	{
		Name: "query1_top_products",
		SQL: `SELECT p.product_id, p.product_name, p.category,
       SUM(f.quantity) AS units_sold,
       SUM(f.line_total) AS total_revenue,
       SUM(f.profit) AS total_profit
FROM warehouse.fact_sales f
JOIN warehouse.dim_products p ON p.product_key = f.product_key
GROUP BY p.product_id, p.product_name, p.category
ORDER BY total_revenue DESC, p.product_id
LIMIT 10`,
	},
	{
		Name: "query2_monthly_trend",
		SQL: `SELECT d.year, d.month, d.month_name,
       COUNT(DISTINCT f.transaction_id) AS transactions,
       SUM(f.line_total) AS revenue,
       SUM(f.profit) AS profit
FROM warehouse.fact_sales f
JOIN warehouse.dim_date d ON d.date_key = f.date_key
GROUP BY d.year, d.month, d.month_name
ORDER BY d.year, d.month`,
	},
	{
		Name: "query3_customer_segmentation",
		SQL: `SELECT segment,
       COUNT(*) AS customers,
       ROUND(AVG(total_spent), 2) AS avg_spent,
       ROUND(AVG(total_orders), 2) AS avg_orders
FROM (
    SELECT m.customer_key, m.total_spent, m.total_orders,
           CASE
               WHEN m.total_spent >= 100000 THEN 'High Value'
               WHEN m.total_spent >= 25000 THEN 'Medium Value'
               ELSE 'Low Value'
           END AS segment
    FROM warehouse.agg_customer_metrics m
) s
GROUP BY segment
ORDER BY avg_spent DESC`,
	},
	{
		Name: "query4_category_performance",
		SQL: `SELECT p.category,
       COUNT(DISTINCT f.transaction_id) AS transactions,
       SUM(f.quantity) AS units_sold,
       SUM(f.line_total) AS revenue,
       SUM(f.profit) AS profit,
       ROUND(SUM(f.profit) * 100.0 / NULLIF(SUM(f.line_total), 0), 2) AS profit_margin_pct
FROM warehouse.fact_sales f
JOIN warehouse.dim_products p ON p.product_key = f.product_key
GROUP BY p.category
ORDER BY revenue DESC`,
	},
	{
		Name: "query5_payment_distribution",
		SQL: `SELECT pm.payment_method_name, pm.payment_type,
       COUNT(DISTINCT f.transaction_id) AS transactions,
       SUM(f.line_total) AS revenue,
       ROUND(COUNT(DISTINCT f.transaction_id) * 100.0
             / NULLIF((SELECT COUNT(DISTINCT transaction_id) FROM warehouse.fact_sales), 0), 2) AS share_pct
FROM warehouse.fact_sales f
JOIN warehouse.dim_payment_method pm ON pm.payment_method_key = f.payment_method_key
GROUP BY pm.payment_method_name, pm.payment_type
ORDER BY transactions DESC, pm.payment_method_name`,
	},
	{
		Name: "query6_geographic_analysis",
		SQL: `SELECT c.country, c.state,
       COUNT(DISTINCT c.customer_id) AS customers,
       COUNT(DISTINCT f.transaction_id) AS transactions,
       SUM(f.line_total) AS revenue
FROM warehouse.fact_sales f
JOIN warehouse.dim_customers c ON c.customer_key = f.customer_key
GROUP BY c.country, c.state
ORDER BY revenue DESC, c.country, c.state
LIMIT 20`,
	},
	{
		Name: "query7_customer_lifetime_value",
		SQL: `SELECT c.customer_id, c.full_name, c.age_group,
       m.total_orders, m.total_spent, m.avg_order_value,
       fd.full_date AS first_purchase,
       ld.full_date AS last_purchase
FROM warehouse.agg_customer_metrics m
JOIN warehouse.dim_customers c ON c.customer_key = m.customer_key
JOIN warehouse.dim_date fd ON fd.date_key = m.first_purchase_date_key
JOIN warehouse.dim_date ld ON ld.date_key = m.last_purchase_date_key
ORDER BY m.total_spent DESC, c.customer_id
LIMIT 20`,
	},
	{
		Name: "query8_product_profitability",
		SQL: `SELECT p.product_id, p.product_name, p.price_range,
       a.units_sold, a.total_revenue, a.total_profit,
       ROUND(a.total_profit * 100.0 / NULLIF(a.total_revenue, 0), 2) AS margin_pct
FROM warehouse.agg_product_performance a
JOIN warehouse.dim_products p ON p.product_key = a.product_key
ORDER BY margin_pct DESC NULLS LAST, p.product_id
LIMIT 20`,
	},
	{
		Name: "query9_day_of_week_pattern",
		SQL: `SELECT d.day_name, d.is_weekend,
       COUNT(DISTINCT f.transaction_id) AS transactions,
       SUM(f.line_total) AS revenue,
       ROUND(AVG(f.line_total), 2) AS avg_line_total
FROM warehouse.fact_sales f
JOIN warehouse.dim_date d ON d.date_key = f.date_key
GROUP BY d.day_name, d.is_weekend, EXTRACT(ISODOW FROM d.full_date)
ORDER BY EXTRACT(ISODOW FROM d.full_date)`,
	},
	{
		Name: "query10_discount_impact",
		SQL: `SELECT ROUND(f.discount_amount * 100.0 / NULLIF(f.quantity * f.unit_price, 0)) AS discount_pct,
       COUNT(*) AS line_items,
       SUM(f.quantity) AS units_sold,
       SUM(f.line_total) AS revenue,
       SUM(f.profit) AS profit
FROM warehouse.fact_sales f
GROUP BY 1
ORDER BY 1`,
	},
}
